package repositories

import (
	"context"

	"github.com/somiapp/somi-core/domain/entities"
)

// FacialEmotionReport is the reduced facial-emotion evidence of one turn.
type FacialEmotionReport struct {
	ConversationMessageID string                   `json:"conversation_message_id"`
	Dominant              entities.DominantEmotion `json:"dominant_emotion"`
	SampleCount           int                      `json:"sample_count"`
	LabelCounts           map[string]int           `json:"per_label_counts"`
	AverageConfidence     float64                  `json:"average_confidence"`
	Samples               []entities.EmotionSample `json:"raw_samples"`
}

// TurnContextSnippet is the surrounding dialogue used for speech-emotion
// inference.
type TurnContextSnippet struct {
	PreviousUserText   string `json:"previous_user_text"`
	PreviousSystemText string `json:"previous_system_text"`
	CurrentUserText    string `json:"current_user_text"`
}

// SpeechEmotionResult is one inferred speech emotion.
type SpeechEmotionResult struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"raw_detail,omitempty"`
}

// SpeechEmotionReport submits an inferred speech emotion for a message.
type SpeechEmotionReport struct {
	ConversationMessageID string  `json:"conversation_message_id"`
	Emotion               string  `json:"emotion"`
	Confidence            float64 `json:"confidence"`
	Detail                string  `json:"raw_detail,omitempty"`
}

// FusedEmotion is the server-side fusion of facial and speech emotion.
type FusedEmotion struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// EmotionService abstracts the emotion-analysis backend. Every call here is
// best-effort from the turn's point of view: failures are logged and never
// block the response pipeline.
type EmotionService interface {
	SubmitFacialEmotion(ctx context.Context, report FacialEmotionReport) error
	FetchTurnContext(ctx context.Context, conversationMessageID string) (TurnContextSnippet, error)
	InferSpeechEmotion(ctx context.Context, snippet TurnContextSnippet) (SpeechEmotionResult, error)
	SubmitSpeechEmotion(ctx context.Context, report SpeechEmotionReport) error
	// FuseEmotions requires both prior submissions to exist server-side.
	FuseEmotions(ctx context.Context, conversationMessageID string) (FusedEmotion, error)
}
