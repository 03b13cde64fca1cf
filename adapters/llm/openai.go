package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/repositories"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIConfig holds configuration for the OpenAI responder.
// Required fields:
// - APIKey: Your OpenAI API key
// Optional fields with defaults:
// - Model: The model to use (default: gpt-4o-mini)
// - BaseURL: Override for OpenAI-compatible endpoints
// - SystemPrompt: The companion persona instruction
type OpenAIConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
}

// OpenAIResponder implements ResponseGenerator using the chat completions
// API. Any OpenAI-compatible endpoint works via BaseURL.
type OpenAIResponder struct {
	client       *openai.Client
	logger       *zap.Logger
	model        string
	systemPrompt string
}

var _ repositories.ResponseGenerator = (*OpenAIResponder)(nil)

// NewOpenAIResponder creates an OpenAI responder.
func NewOpenAIResponder(config OpenAIConfig, logger *zap.Logger) (*OpenAIResponder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}

	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &OpenAIResponder{
		client:       openai.NewClientWithConfig(clientConfig),
		logger:       logger,
		model:        model,
		systemPrompt: systemPrompt,
	}, nil
}

// GenerateResponse implements repositories.ResponseGenerator
func (o *OpenAIResponder) GenerateResponse(ctx context.Context, req repositories.ResponseRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt},
			{Role: openai.ChatMessageRoleAssistant, Content: req.QuestionText},
			{Role: openai.ChatMessageRoleUser, Content: req.UserText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai: empty response")
	}

	o.logger.Debug("Response generated",
		zap.String("model", o.model),
		zap.Int("chars", len(text)))
	return text, nil
}
