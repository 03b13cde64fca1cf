package repositories

import "context"

// Conversation is one diary conversation as created by the backend.
type Conversation struct {
	ID              string `json:"conversation_id"`
	QuestionID      string `json:"question_id"`
	OpeningQuestion string `json:"opening_question"`
}

// ConversationRepository abstracts conversation storage. The client never
// persists dialogue itself; every message lives behind this boundary.
type ConversationRepository interface {
	// Start creates a conversation and returns its opening question.
	Start(ctx context.Context, userID string) (Conversation, error)
	// SaveTranscript persists one user utterance and returns the
	// conversation message ID the backend assigned to it.
	SaveTranscript(ctx context.Context, conversationID, text string) (string, error)
	// End terminates the conversation.
	End(ctx context.Context, conversationID string) error
	// GenerateDiary asks the backend to compose the diary entry for a
	// finished conversation. Best-effort.
	GenerateDiary(ctx context.Context, conversationID string) error
}

// ResponseRequest identifies the turn a response is generated for. The
// backend keys generation by message ID alone; direct LLM responders use the
// accompanying texts.
type ResponseRequest struct {
	ConversationMessageID string
	QuestionText          string
	UserText              string
}

// ResponseGenerator abstracts AI response generation. On the critical path:
// no turn action follows until it returns or fails.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, req ResponseRequest) (string, error)
}
