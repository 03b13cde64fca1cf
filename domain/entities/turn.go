package entities

import "time"

// TurnState represents where a conversation turn currently is in the
// question -> listen -> transcribe -> analyze -> respond -> speak cycle.
// Exactly one state is active at a time; every UI-visible flag is derived
// from it and never stored separately.
type TurnState int

const (
	// TurnIdle - no turn in flight; terminal after the conversation ends
	TurnIdle TurnState = iota

	// TurnAwaitingQuestionPlayback - question audio is being synthesized/played
	TurnAwaitingQuestionPlayback

	// TurnListening - microphone armed, capture and emotion sampling active
	TurnListening

	// TurnStoppingCapture - capture is being finalized and encoded
	TurnStoppingCapture

	// TurnTranscribing - utterance submitted for speech-to-text
	TurnTranscribing

	// TurnAnalyzingEmotion - transcript saved, emotion submissions firing
	TurnAnalyzingEmotion

	// TurnGeneratingResponse - waiting on AI response generation
	TurnGeneratingResponse

	// TurnPlayingResponse - response text shown, synthesis playing back
	TurnPlayingResponse
)

// String returns the string representation of the state
func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnAwaitingQuestionPlayback:
		return "awaiting_question_playback"
	case TurnListening:
		return "listening"
	case TurnStoppingCapture:
		return "stopping_capture"
	case TurnTranscribing:
		return "transcribing"
	case TurnAnalyzingEmotion:
		return "analyzing_emotion"
	case TurnGeneratingResponse:
		return "generating_response"
	case TurnPlayingResponse:
		return "playing_response"
	default:
		return "unknown"
	}
}

// IsQuestionComplete reports whether question playback has finished and the
// answer affordances may be shown.
func (s TurnState) IsQuestionComplete() bool {
	return s != TurnIdle && s != TurnAwaitingQuestionPlayback
}

// IsProcessingResponse reports whether the turn is busy between the end of
// capture and the availability of an AI response.
func (s TurnState) IsProcessingResponse() bool {
	switch s {
	case TurnStoppingCapture, TurnTranscribing, TurnAnalyzingEmotion, TurnGeneratingResponse:
		return true
	}
	return false
}

// HasAIResponse reports whether a generated response is currently being shown.
func (s TurnState) HasAIResponse() bool {
	return s == TurnPlayingResponse
}

// IsCapturing reports whether the microphone is actively recording.
func (s TurnState) IsCapturing() bool {
	return s == TurnListening
}

// TurnContext carries the identifiers owned by one turn. All fields are fixed
// at turn start except ConversationMessageID, which the backend assigns when
// the user's transcript is persisted; calls that need it may not fire before
// it exists.
type TurnContext struct {
	ConversationID        string
	QuestionID            string
	CameraSessionID       string
	MicrophoneSessionID   string
	UserID                string
	ConversationMessageID string
}

// EncodedAudio is a transport-ready audio payload.
type EncodedAudio struct {
	Data       string `json:"data"` // base64 encoded
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	DurationMs int64  `json:"duration_ms"`
}

// Empty reports whether the payload carries no audio.
func (a EncodedAudio) Empty() bool {
	return a.Data == ""
}

// Utterance is one recorded answer with its derived transcript. It lives only
// for the duration of the turn that produced it.
type Utterance struct {
	Audio      EncodedAudio
	Transcript string
	Confidence float64
	RecordedAt time.Time
}
