package api

import "time"

// TokenRequest represents the request payload for token issuance
type TokenRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// TokenResponse represents the response payload for token issuance
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// GuardianLinkRequest represents the request payload for a guardian link
type GuardianLinkRequest struct {
	GuardianEmail string `json:"guardian_email" validate:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
