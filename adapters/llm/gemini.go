// Package llm provides direct-LLM response generators for deployments that
// bypass the backend's response endpoint.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/somiapp/somi-core/domain/repositories"
)

const (
	defaultGeminiModel       = "gemini-2.0-flash"
	defaultGeminiTemperature = 0.7
	defaultGeminiMaxTokens   = 256
	geminiRetryAttempts      = 3
)

// defaultSystemPrompt steers responses toward short empathetic follow-ups a
// diary companion would speak aloud.
const defaultSystemPrompt = "당신은 일기 친구 '소미'입니다. 사용자의 대답에 짧고 따뜻하게 공감하고, " +
	"자연스러운 후속 질문을 한 문장으로 이어가세요. 대답은 두 문장을 넘기지 마세요."

// GeminiConfig holds configuration for the Gemini responder.
// Required fields:
// - APIKey: Your Google AI API key
// Optional fields with defaults:
// - Model: The model to use (default: "gemini-2.0-flash")
// - Temperature: Sampling temperature between 0 and 1 (default: 0.7)
// - MaxOutputTokens: Response length cap (default: 256)
// - SystemPrompt: The companion persona instruction
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	SystemPrompt    string
}

// ValidateGeminiConfig validates the GeminiConfig.
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	return nil
}

// GeminiResponder implements ResponseGenerator using Google's Gemini API.
type GeminiResponder struct {
	client       *genai.Client
	logger       *zap.Logger
	model        string
	temperature  float32
	maxTokens    int
	systemPrompt string
}

var _ repositories.ResponseGenerator = (*GeminiResponder)(nil)

// NewGeminiResponder creates a Gemini responder.
func NewGeminiResponder(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiResponder, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultGeminiTemperature
	}

	maxTokens := config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultGeminiMaxTokens
	}

	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &GeminiResponder{
		client:       client,
		logger:       logger,
		model:        model,
		temperature:  temperature,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
	}, nil
}

// GenerateResponse implements repositories.ResponseGenerator
func (g *GeminiResponder) GenerateResponse(ctx context.Context, req repositories.ResponseRequest) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
		genai.NewContentFromText(req.QuestionText, genai.RoleModel),
		genai.NewContentFromText(req.UserText, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxTokens),
	}

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < geminiRetryAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < geminiRetryAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}

	g.logger.Debug("Response generated",
		zap.String("model", g.model),
		zap.Int("chars", len(text)))
	return text, nil
}
