package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/repositories"
)

var (
	_ repositories.ConversationRepository = (*Client)(nil)
	_ repositories.ResponseGenerator     = (*Client)(nil)
)

type startConversationRequest struct {
	UserID string `json:"user_id"`
}

type saveTranscriptRequest struct {
	Text string `json:"text"`
}

type saveTranscriptResponse struct {
	ConversationMessageID string `json:"conversation_message_id"`
}

type generateResponseRequest struct {
	ConversationMessageID string `json:"conversation_message_id"`
}

type generateResponseResponse struct {
	Response string `json:"response"`
}

// Start implements repositories.ConversationRepository
func (c *Client) Start(ctx context.Context, userID string) (repositories.Conversation, error) {
	var conversation repositories.Conversation
	err := c.postJSON(ctx, "/api/v1/conversations", startConversationRequest{UserID: userID}, &conversation)
	if err != nil {
		return repositories.Conversation{}, fmt.Errorf("start conversation: %w", err)
	}

	c.logger.Info("Conversation started",
		zap.String("conversationID", conversation.ID),
		zap.String("questionID", conversation.QuestionID))
	return conversation, nil
}

// SaveTranscript implements repositories.ConversationRepository
func (c *Client) SaveTranscript(ctx context.Context, conversationID, text string) (string, error) {
	var resp saveTranscriptResponse
	path := fmt.Sprintf("/api/v1/conversations/%s/messages", conversationID)
	if err := c.postJSON(ctx, path, saveTranscriptRequest{Text: text}, &resp); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	if resp.ConversationMessageID == "" {
		return "", fmt.Errorf("save transcript: backend returned no message ID")
	}
	return resp.ConversationMessageID, nil
}

// End implements repositories.ConversationRepository
func (c *Client) End(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/v1/conversations/%s/end", conversationID)
	if err := c.postJSON(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}

// GenerateDiary implements repositories.ConversationRepository
func (c *Client) GenerateDiary(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/v1/conversations/%s/diary", conversationID)
	if err := c.postJSON(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("generate diary: %w", err)
	}
	c.logger.Info("Diary generation requested", zap.String("conversationID", conversationID))
	return nil
}

// GenerateResponse implements repositories.ResponseGenerator. The backend
// looks up the saved transcript by message ID, so the accompanying texts in
// the request are not transmitted.
func (c *Client) GenerateResponse(ctx context.Context, req repositories.ResponseRequest) (string, error) {
	var resp generateResponseResponse
	err := c.postJSON(ctx, "/api/v1/responses", generateResponseRequest{
		ConversationMessageID: req.ConversationMessageID,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	if resp.Response == "" {
		return "", fmt.Errorf("generate response: backend returned empty response")
	}
	return resp.Response, nil
}
