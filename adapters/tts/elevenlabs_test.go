package tts

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/repositories"
)

func TestValidateElevenLabsConfig(t *testing.T) {
	if err := ValidateElevenLabsConfig(ElevenLabsConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if err := ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Stability: 1.5}); err == nil {
		t.Error("Expected error for out-of-range stability")
	}
	if err := ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k", Clarity: -0.1}); err == nil {
		t.Error("Expected error for out-of-range clarity")
	}
	if err := ValidateElevenLabsConfig(ElevenLabsConfig{APIKey: "k"}); err != nil {
		t.Errorf("Unexpected error for valid config: %v", err)
	}
}

func TestSynthesizeReturnsEncodedAudio(t *testing.T) {
	audioBytes := []byte{0x01, 0x02, 0x03, 0x04}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("Unexpected API key header %q", got)
		}
		if got := r.Header.Get("Accept"); got != "audio/mpeg" {
			t.Errorf("Unexpected accept header %q", got)
		}
		w.Write(audioBytes)
	}))
	defer server.Close()

	synthesizer, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-key",
		APIBaseURL: server.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	audio, err := synthesizer.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "안녕"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if audio.Format != "mp3" {
		t.Errorf("Expected mp3 format, got %s", audio.Format)
	}
	if audio.Data != base64.StdEncoding.EncodeToString(audioBytes) {
		t.Errorf("Unexpected audio data %q", audio.Data)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synthesizer, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "test-key"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := synthesizer.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "   "}); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestSynthesizeSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer server.Close()

	synthesizer, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "bad-key",
		APIBaseURL: server.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := synthesizer.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "안녕"}); err == nil {
		t.Error("Expected error for API failure")
	}
}

func TestFormatLabel(t *testing.T) {
	if got := formatLabel("mp3_44100_128"); got != "mp3" {
		t.Errorf("Expected mp3, got %s", got)
	}
	if got := formatLabel("pcm_24000"); got != "pcm" {
		t.Errorf("Expected pcm, got %s", got)
	}
	if got := formatLabel("ulaw_8000"); got != "ulaw_8000" {
		t.Errorf("Expected passthrough, got %s", got)
	}
}
