package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected client error: %v", err)
	}
	return client, server
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(Config{APIKey: "k"}); err == nil {
		t.Error("Expected error for missing base URL")
	}
	if err := ValidateConfig(Config{BaseURL: "http://localhost"}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if err := ValidateConfig(Config{BaseURL: "http://localhost", APIKey: "k"}); err != nil {
		t.Errorf("Unexpected error for valid config: %v", err)
	}
}

func TestStartConversation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/conversations" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected authorization header %q", got)
		}

		var req startConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.UserID != "user-1" {
			t.Errorf("Unexpected user ID %s", req.UserID)
		}

		json.NewEncoder(w).Encode(repositories.Conversation{
			ID:              "conv-1",
			QuestionID:      "q-1",
			OpeningQuestion: "오늘 하루는 어땠어?",
		})
	}))

	conversation, err := client.Start(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if conversation.ID != "conv-1" {
		t.Errorf("Expected conv-1, got %s", conversation.ID)
	}
	if conversation.OpeningQuestion != "오늘 하루는 어땠어?" {
		t.Errorf("Unexpected opening question %q", conversation.OpeningQuestion)
	}
}

func TestSaveTranscriptReturnsMessageID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/conversations/conv-1/messages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(saveTranscriptResponse{ConversationMessageID: "msg-1"})
	}))

	messageID, err := client.SaveTranscript(context.Background(), "conv-1", "It was good")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if messageID != "msg-1" {
		t.Errorf("Expected msg-1, got %s", messageID)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		code   string
		status int
		want   error
	}{
		{"session_already_active", http.StatusConflict, repositories.ErrSessionAlreadyActive},
		{"conversation_ended", http.StatusGone, repositories.ErrConversationEnded},
		{"not_found", http.StatusNotFound, repositories.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(errorResponse{Error: tc.code, Message: "rejected"})
			}))

			_, err := client.SaveTranscript(context.Background(), "conv-1", "text")
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUnknownErrorCodeSurfacesCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "storage_failure", Message: "disk full"})
	}))

	err := client.End(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, repositories.ErrSessionAlreadyActive) ||
		errors.Is(err, repositories.ErrConversationEnded) ||
		errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Unknown code must not map to a known kind, got %v", err)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))

	err := client.End(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("Expected error for non-JSON error body")
	}
}

func TestTranscribe(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transcribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Language != "ko-KR" {
			t.Errorf("Unexpected language %s", req.Language)
		}
		if req.SampleRate != 16000 {
			t.Errorf("Unexpected sample rate %d", req.SampleRate)
		}
		json.NewEncoder(w).Encode(repositories.Transcription{Text: "오늘 좋았어", Confidence: 0.92})
	}))

	transcription, err := client.Transcribe(context.Background(), entities.EncodedAudio{
		Data:       "QUJD",
		Format:     "LINEAR16",
		SampleRate: 16000,
	}, "ko-KR")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if transcription.Text != "오늘 좋았어" {
		t.Errorf("Unexpected text %q", transcription.Text)
	}
	if transcription.Confidence != 0.92 {
		t.Errorf("Unexpected confidence %f", transcription.Confidence)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Empty audio must not reach the backend")
	}))

	if _, err := client.Transcribe(context.Background(), entities.EncodedAudio{}, "ko-KR"); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestGenerateResponseRejectsEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponseResponse{Response: ""})
	}))

	_, err := client.GenerateResponse(context.Background(), repositories.ResponseRequest{
		ConversationMessageID: "msg-1",
	})
	if err == nil {
		t.Error("Expected error for empty generated response")
	}
}

func TestFuseEmotions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fuseEmotionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ConversationMessageID != "msg-1" {
			t.Errorf("Unexpected message ID %s", req.ConversationMessageID)
		}
		json.NewEncoder(w).Encode(repositories.FusedEmotion{Emotion: "happy", Confidence: 0.85})
	}))

	fused, err := client.FuseEmotions(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fused.Emotion != "happy" {
		t.Errorf("Expected happy, got %s", fused.Emotion)
	}
}

func TestGuardianLinkRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/guardians/links":
			json.NewEncoder(w).Encode(repositories.GuardianLink{RequestID: "req-1", Status: "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/guardians/links/req-1":
			json.NewEncoder(w).Encode(repositories.GuardianLink{RequestID: "req-1", Status: "approved"})
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	link, err := client.RequestLink(context.Background(), "user-1", "parent@example.com")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if link.Status != "pending" {
		t.Errorf("Expected pending, got %s", link.Status)
	}

	link, err = client.LinkStatus(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if link.Status != "approved" {
		t.Errorf("Expected approved, got %s", link.Status)
	}
}
