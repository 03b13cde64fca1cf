// Package backend is the REST client for the somi backend. One Client value
// implements every remote capability the turn controller consumes:
// conversation storage, transcription, response generation, speech synthesis,
// emotion analysis, and guardian linking.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/repositories"
)

const defaultTimeout = 20 * time.Second

// Config holds configuration for the backend client.
// Required fields:
// - BaseURL: The base URL of the backend API, without a trailing slash
// - APIKey: The service API key sent as a bearer token
// Optional fields with defaults:
// - Timeout: Per-request timeout (default: 20s)
// - HTTPClient: The underlying HTTP client (default: one with Timeout set)
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ValidateConfig validates the backend client configuration.
func ValidateConfig(config Config) error {
	if config.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	if config.APIKey == "" {
		return fmt.Errorf("backend API key is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", config.Timeout)
	}
	return nil
}

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// apiError maps a machine-readable backend error code onto the stable error
// kinds the turn controller branches on. Unknown codes surface as plain
// errors carrying the code and message.
func apiError(status int, body []byte) error {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == "" {
		return fmt.Errorf("backend returned status %d", status)
	}

	switch envelope.Error {
	case "session_already_active":
		return repositories.ErrSessionAlreadyActive
	case "conversation_ended":
		return repositories.ErrConversationEnded
	case "not_found":
		return repositories.ErrNotFound
	}
	return fmt.Errorf("backend error %s: %s", envelope.Error, envelope.Message)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Backend request rejected",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return apiError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
