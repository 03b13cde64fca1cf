package turn

import (
	"errors"

	"github.com/somiapp/somi-core/domain/entities"
)

var (
	// ErrTurnInFlight is returned by BeginTurn while a turn is active.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// Transcript-validity kinds. All three take the re-prompt path.
	ErrEmptyTranscript  = errors.New("empty transcript")
	ErrLowConfidence    = errors.New("transcript confidence below threshold")
	ErrNoSpeechArtifact = errors.New("transcript matches no-speech artifact")
)

// allowedTransitions lists the legal successor states of each turn state.
// Idle is reachable from anywhere (end of conversation) and is handled
// separately in canTransition.
var allowedTransitions = map[entities.TurnState][]entities.TurnState{
	entities.TurnIdle:                     {entities.TurnAwaitingQuestionPlayback},
	entities.TurnAwaitingQuestionPlayback: {entities.TurnListening},
	entities.TurnListening:                {entities.TurnStoppingCapture},
	entities.TurnStoppingCapture:          {entities.TurnTranscribing, entities.TurnAwaitingQuestionPlayback},
	entities.TurnTranscribing:             {entities.TurnAnalyzingEmotion, entities.TurnAwaitingQuestionPlayback},
	entities.TurnAnalyzingEmotion:         {entities.TurnGeneratingResponse, entities.TurnListening},
	entities.TurnGeneratingResponse:       {entities.TurnPlayingResponse, entities.TurnListening},
	entities.TurnPlayingResponse:          {entities.TurnListening},
}

func canTransition(from, to entities.TurnState) bool {
	if to == entities.TurnIdle {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Snapshot is the externally visible view of a turn. Every flag is a pure
// projection of the state value; none is stored independently.
type Snapshot struct {
	State                entities.TurnState `json:"state"`
	IsQuestionComplete   bool               `json:"is_question_complete"`
	IsProcessingResponse bool               `json:"is_processing_response"`
	HasAIResponse        bool               `json:"has_ai_response"`
	IsCapturing          bool               `json:"is_capturing"`
	CaptureSeconds       int                `json:"capture_seconds"`
}

func snapshotOf(state entities.TurnState, captureSeconds int) Snapshot {
	return Snapshot{
		State:                state,
		IsQuestionComplete:   state.IsQuestionComplete(),
		IsProcessingResponse: state.IsProcessingResponse(),
		HasAIResponse:        state.HasAIResponse(),
		IsCapturing:          state.IsCapturing(),
		CaptureSeconds:       captureSeconds,
	}
}

// EventSink receives turn events for the UI layer. Implementations must not
// call back into the controller from within a callback.
type EventSink interface {
	// TurnStateChanged fires on every state transition.
	TurnStateChanged(snapshot Snapshot)
	// QuestionChanged fires when the displayed question text changes,
	// including re-prompts and AI responses promoted to the next question.
	QuestionChanged(text string)
	// ResponseReady fires when AI response text is available, before
	// synthesis starts.
	ResponseReady(text string)
	// CaptureProgress fires once per second while the microphone is armed.
	CaptureProgress(seconds int)
	// CaptureFailed fires when the microphone could not be opened.
	CaptureFailed(err error)
}
