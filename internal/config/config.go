// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted for the pluggable remote capabilities.
const (
	ProviderBackend    = "backend"
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
	ProviderMongo      = "mongo"
)

// Config is the full service configuration.
type Config struct {
	Port string

	JWTSecret    string
	ClientSecret string
	TokenTTL     time.Duration

	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration

	// TranscriberProvider selects backend or google.
	TranscriberProvider string
	// ResponderProvider selects backend, gemini, or openai.
	ResponderProvider string
	// SynthesizerProvider selects backend or elevenlabs.
	SynthesizerProvider string
	// ConversationProvider selects backend or mongo.
	ConversationProvider string

	MongoURI      string
	MongoDatabase string

	GeminiAPIKey      string
	OpenAIAPIKey      string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string

	MaxCaptureSeconds int
	Language          string
	RepromptText      string

	// MinTranscriptConfidence below which a transcript is reprompted.
	MinTranscriptConfidence float64
	// NoSpeechArtifacts override the built-in no-speech phrase list.
	NoSpeechArtifacts []string
	// ResponseDisplayDelay between response text and audio playback.
	ResponseDisplayDelay time.Duration

	MaxIdle time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		ClientSecret:            os.Getenv("CLIENT_SECRET"),
		TokenTTL:                getDuration("TOKEN_TTL", 7*24*time.Hour),
		BackendURL:              os.Getenv("SOMI_BACKEND_URL"),
		BackendAPIKey:           os.Getenv("SOMI_BACKEND_API_KEY"),
		BackendTimeout:          getDuration("SOMI_BACKEND_TIMEOUT", 20*time.Second),
		TranscriberProvider:     getEnv("TRANSCRIBER_PROVIDER", ProviderBackend),
		ResponderProvider:       getEnv("RESPONDER_PROVIDER", ProviderBackend),
		SynthesizerProvider:     getEnv("SYNTHESIZER_PROVIDER", ProviderBackend),
		ConversationProvider:    getEnv("CONVERSATION_PROVIDER", ProviderBackend),
		MongoURI:                os.Getenv("MONGODB_URI"),
		MongoDatabase:           os.Getenv("MONGODB_DATABASE"),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:            os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey:        os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:       os.Getenv("ELEVENLABS_VOICE_ID"),
		MaxCaptureSeconds:       getInt("MAX_CAPTURE_SECONDS", 120),
		Language:                getEnv("LANGUAGE", "ko-KR"),
		RepromptText:            os.Getenv("REPROMPT_TEXT"),
		MinTranscriptConfidence: getFloat("STT_MIN_CONFIDENCE", 0.3),
		NoSpeechArtifacts:       getList("NO_SPEECH_ARTIFACTS"),
		ResponseDisplayDelay:    getDuration("RESPONSE_DISPLAY_DELAY", 500*time.Millisecond),
		MaxIdle:                 getDuration("MAX_IDLE", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("CLIENT_SECRET is required")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("SOMI_BACKEND_URL is required")
	}
	if c.BackendAPIKey == "" {
		return fmt.Errorf("SOMI_BACKEND_API_KEY is required")
	}

	switch c.TranscriberProvider {
	case ProviderBackend, ProviderGoogle:
	default:
		return fmt.Errorf("unsupported transcriber provider: %s", c.TranscriberProvider)
	}

	switch c.ResponderProvider {
	case ProviderBackend:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini responder")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai responder")
		}
	default:
		return fmt.Errorf("unsupported responder provider: %s", c.ResponderProvider)
	}

	switch c.ConversationProvider {
	case ProviderBackend, ProviderMongo:
	default:
		return fmt.Errorf("unsupported conversation provider: %s", c.ConversationProvider)
	}

	switch c.SynthesizerProvider {
	case ProviderBackend:
	case ProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs synthesizer")
		}
	default:
		return fmt.Errorf("unsupported synthesizer provider: %s", c.SynthesizerProvider)
	}

	if c.MaxCaptureSeconds <= 0 {
		return fmt.Errorf("MAX_CAPTURE_SECONDS must be positive, got %d", c.MaxCaptureSeconds)
	}
	if c.MinTranscriptConfidence < 0 || c.MinTranscriptConfidence >= 1 {
		return fmt.Errorf("STT_MIN_CONFIDENCE must be in [0, 1), got %g", c.MinTranscriptConfidence)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getList splits a comma-separated value, dropping empty entries. Returns
// nil when the key is unset so downstream defaults apply.
func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
