package backend

import (
	"context"
	"fmt"

	"github.com/somiapp/somi-core/domain/repositories"
)

var _ repositories.EmotionService = (*Client)(nil)

type fuseEmotionsRequest struct {
	ConversationMessageID string `json:"conversation_message_id"`
}

// SubmitFacialEmotion implements repositories.EmotionService
func (c *Client) SubmitFacialEmotion(ctx context.Context, report repositories.FacialEmotionReport) error {
	if err := c.postJSON(ctx, "/api/v1/emotions/facial", report, nil); err != nil {
		return fmt.Errorf("submit facial emotion: %w", err)
	}
	return nil
}

// FetchTurnContext implements repositories.EmotionService
func (c *Client) FetchTurnContext(ctx context.Context, conversationMessageID string) (repositories.TurnContextSnippet, error) {
	var snippet repositories.TurnContextSnippet
	path := fmt.Sprintf("/api/v1/messages/%s/context", conversationMessageID)
	if err := c.getJSON(ctx, path, &snippet); err != nil {
		return repositories.TurnContextSnippet{}, fmt.Errorf("fetch turn context: %w", err)
	}
	return snippet, nil
}

// InferSpeechEmotion implements repositories.EmotionService
func (c *Client) InferSpeechEmotion(ctx context.Context, snippet repositories.TurnContextSnippet) (repositories.SpeechEmotionResult, error) {
	var result repositories.SpeechEmotionResult
	if err := c.postJSON(ctx, "/api/v1/emotions/speech/infer", snippet, &result); err != nil {
		return repositories.SpeechEmotionResult{}, fmt.Errorf("infer speech emotion: %w", err)
	}
	if result.Emotion == "" {
		return repositories.SpeechEmotionResult{}, fmt.Errorf("infer speech emotion: backend returned no emotion")
	}
	return result, nil
}

// SubmitSpeechEmotion implements repositories.EmotionService
func (c *Client) SubmitSpeechEmotion(ctx context.Context, report repositories.SpeechEmotionReport) error {
	if err := c.postJSON(ctx, "/api/v1/emotions/speech", report, nil); err != nil {
		return fmt.Errorf("submit speech emotion: %w", err)
	}
	return nil
}

// FuseEmotions implements repositories.EmotionService
func (c *Client) FuseEmotions(ctx context.Context, conversationMessageID string) (repositories.FusedEmotion, error) {
	var fused repositories.FusedEmotion
	err := c.postJSON(ctx, "/api/v1/emotions/fuse", fuseEmotionsRequest{
		ConversationMessageID: conversationMessageID,
	}, &fused)
	if err != nil {
		return repositories.FusedEmotion{}, fmt.Errorf("fuse emotions: %w", err)
	}
	return fused, nil
}
