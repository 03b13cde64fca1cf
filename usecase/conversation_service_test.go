package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/adapters/audio"
	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
	"github.com/somiapp/somi-core/internal/turn"
)

// stubRemote implements every remote capability a controller needs with
// canned values.
type stubRemote struct {
	mu       sync.Mutex
	startErr error
	started  []string
	ended    []string
	diaries  []string
	diaryErr error
}

func (s *stubRemote) Transcribe(ctx context.Context, _ entities.EncodedAudio, _ string) (repositories.Transcription, error) {
	return repositories.Transcription{Text: "ok", Confidence: 0.9}, nil
}

func (s *stubRemote) Synthesize(ctx context.Context, req repositories.SynthesisRequest) (entities.EncodedAudio, error) {
	return entities.EncodedAudio{Data: "QUJD", Format: "mp3"}, nil
}

func (s *stubRemote) GenerateResponse(ctx context.Context, _ repositories.ResponseRequest) (string, error) {
	return "response", nil
}

func (s *stubRemote) SubmitFacialEmotion(ctx context.Context, _ repositories.FacialEmotionReport) error {
	return nil
}

func (s *stubRemote) FetchTurnContext(ctx context.Context, _ string) (repositories.TurnContextSnippet, error) {
	return repositories.TurnContextSnippet{}, nil
}

func (s *stubRemote) InferSpeechEmotion(ctx context.Context, _ repositories.TurnContextSnippet) (repositories.SpeechEmotionResult, error) {
	return repositories.SpeechEmotionResult{Emotion: "calm", Confidence: 0.5}, nil
}

func (s *stubRemote) SubmitSpeechEmotion(ctx context.Context, _ repositories.SpeechEmotionReport) error {
	return nil
}

func (s *stubRemote) FuseEmotions(ctx context.Context, _ string) (repositories.FusedEmotion, error) {
	return repositories.FusedEmotion{}, nil
}

func (s *stubRemote) Start(ctx context.Context, userID string) (repositories.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return repositories.Conversation{}, s.startErr
	}
	s.started = append(s.started, userID)
	return repositories.Conversation{ID: "conv-1", OpeningQuestion: "오늘 하루는 어땠어?"}, nil
}

func (s *stubRemote) SaveTranscript(ctx context.Context, conversationID, text string) (string, error) {
	return "msg-1", nil
}

func (s *stubRemote) End(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, conversationID)
	return nil
}

func (s *stubRemote) GenerateDiary(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.diaryErr != nil {
		return s.diaryErr
	}
	s.diaries = append(s.diaries, conversationID)
	return nil
}

func newTestController(t *testing.T, remote *stubRemote) *turn.Controller {
	t.Helper()

	device := audio.NewMemoryDevice(zap.NewNop())
	device.AutoCompletePlayback(0)

	controller, err := turn.NewController(device, nil, turn.Services{
		Transcriber:   remote,
		Emotions:      remote,
		Responder:     remote,
		Synthesizer:   remote,
		Conversations: remote,
	}, turn.Config{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected controller error: %v", err)
	}
	return controller
}

func TestStartBeginsFirstTurn(t *testing.T) {
	remote := &stubRemote{}
	service := NewConversationService(remote, zap.NewNop())
	controller := newTestController(t, remote)

	conversation, err := service.Start(context.Background(), "user-1", controller)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if conversation.ID != "conv-1" {
		t.Errorf("Expected conv-1, got %s", conversation.ID)
	}
	if controller.State() == entities.TurnIdle {
		t.Error("Expected turn to be in flight after start")
	}
	if service.ActiveCount() != 1 {
		t.Errorf("Expected one active conversation, got %d", service.ActiveCount())
	}
}

func TestStartPropagatesBackendFailure(t *testing.T) {
	remote := &stubRemote{startErr: errors.New("backend down")}
	service := NewConversationService(remote, zap.NewNop())
	controller := newTestController(t, remote)

	if _, err := service.Start(context.Background(), "user-1", controller); err == nil {
		t.Fatal("Expected error")
	}
	if controller.State() != entities.TurnIdle {
		t.Error("Controller must stay idle when the backend rejects the start")
	}
	if service.ActiveCount() != 0 {
		t.Errorf("Expected no active conversations, got %d", service.ActiveCount())
	}
}

func TestEndTerminatesAndRequestsDiary(t *testing.T) {
	remote := &stubRemote{}
	service := NewConversationService(remote, zap.NewNop())
	controller := newTestController(t, remote)

	if _, err := service.Start(context.Background(), "user-1", controller); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := service.End(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if controller.State() != entities.TurnIdle {
		t.Errorf("Expected idle after end, got %s", controller.State())
	}
	remote.mu.Lock()
	ended, diaries := len(remote.ended), len(remote.diaries)
	remote.mu.Unlock()
	if ended != 1 {
		t.Errorf("Expected one backend end call, got %d", ended)
	}
	if diaries != 1 {
		t.Errorf("Expected one diary request, got %d", diaries)
	}
	if service.ActiveCount() != 0 {
		t.Errorf("Expected empty registry, got %d", service.ActiveCount())
	}
}

func TestEndUnknownConversation(t *testing.T) {
	service := NewConversationService(&stubRemote{}, zap.NewNop())
	if err := service.End(context.Background(), "missing"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEndSwallowsDiaryFailure(t *testing.T) {
	remote := &stubRemote{diaryErr: errors.New("diary service down")}
	service := NewConversationService(remote, zap.NewNop())
	controller := newTestController(t, remote)

	if _, err := service.Start(context.Background(), "user-1", controller); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := service.End(context.Background(), "conv-1"); err != nil {
		t.Errorf("Diary failure must not fail the end request, got %v", err)
	}
}

func TestReleaseEndsOrphanedConversation(t *testing.T) {
	remote := &stubRemote{}
	service := NewConversationService(remote, zap.NewNop())
	controller := newTestController(t, remote)

	if _, err := service.Start(context.Background(), "user-1", controller); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	service.Release(context.Background(), controller)

	if controller.State() != entities.TurnIdle {
		t.Errorf("Expected idle after release, got %s", controller.State())
	}
	if service.ActiveCount() != 0 {
		t.Errorf("Expected empty registry, got %d", service.ActiveCount())
	}

	// A second release is a no-op.
	service.Release(context.Background(), controller)
}
