package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CLIENT_SECRET", "client")
	t.Setenv("SOMI_BACKEND_URL", "http://localhost:9000")
	t.Setenv("SOMI_BACKEND_API_KEY", "key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.ResponderProvider != ProviderBackend {
		t.Errorf("Expected backend responder, got %s", cfg.ResponderProvider)
	}
	if cfg.Language != "ko-KR" {
		t.Errorf("Expected ko-KR, got %s", cfg.Language)
	}
	if cfg.MaxCaptureSeconds != 120 {
		t.Errorf("Expected 120, got %d", cfg.MaxCaptureSeconds)
	}
	if cfg.MaxIdle != 10*time.Minute {
		t.Errorf("Expected 10m, got %v", cfg.MaxIdle)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error for missing JWT secret")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("RESPONDER_PROVIDER", "mainframe")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown responder provider")
	}
}

func TestGeminiProviderRequiresKey(t *testing.T) {
	setRequired(t)
	t.Setenv("RESPONDER_PROVIDER", ProviderGemini)
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error for gemini responder without API key")
	}

	t.Setenv("GEMINI_API_KEY", "gk")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.ResponderProvider != ProviderGemini {
		t.Errorf("Expected gemini, got %s", cfg.ResponderProvider)
	}
}

func TestTranscriptTuningDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.MinTranscriptConfidence != 0.3 {
		t.Errorf("Expected 0.3, got %g", cfg.MinTranscriptConfidence)
	}
	if cfg.NoSpeechArtifacts != nil {
		t.Errorf("Expected nil artifact override, got %v", cfg.NoSpeechArtifacts)
	}
	if cfg.ResponseDisplayDelay != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", cfg.ResponseDisplayDelay)
	}
}

func TestTranscriptTuningOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STT_MIN_CONFIDENCE", "0.5")
	t.Setenv("NO_SPEECH_ARTIFACTS", "구독과 좋아요, Thanks for watching , ")
	t.Setenv("RESPONSE_DISPLAY_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.MinTranscriptConfidence != 0.5 {
		t.Errorf("Expected 0.5, got %g", cfg.MinTranscriptConfidence)
	}
	want := []string{"구독과 좋아요", "Thanks for watching"}
	if len(cfg.NoSpeechArtifacts) != len(want) {
		t.Fatalf("Expected %d artifacts, got %v", len(want), cfg.NoSpeechArtifacts)
	}
	for i, phrase := range want {
		if cfg.NoSpeechArtifacts[i] != phrase {
			t.Errorf("Expected artifact %q, got %q", phrase, cfg.NoSpeechArtifacts[i])
		}
	}
	if cfg.ResponseDisplayDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.ResponseDisplayDelay)
	}
}

func TestRejectsOutOfRangeConfidence(t *testing.T) {
	setRequired(t)
	t.Setenv("STT_MIN_CONFIDENCE", "1.5")

	if _, err := Load(); err == nil {
		t.Error("Expected error for out-of-range confidence threshold")
	}
}

func TestDurationOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("SOMI_BACKEND_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.BackendTimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %v", cfg.BackendTimeout)
	}
}
