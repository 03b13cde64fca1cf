package repositories

import "errors"

// Stable error kinds the turn controller branches on. Adapters map
// machine-readable backend error codes onto these; nothing in the core
// inspects server error prose.
var (
	// ErrSessionAlreadyActive - the backend still considers a capture session
	// open for this conversation.
	ErrSessionAlreadyActive = errors.New("capture session already active")

	// ErrConversationEnded - the conversation was terminated server-side.
	ErrConversationEnded = errors.New("conversation already ended")

	// ErrNotFound - the referenced conversation or message does not exist.
	ErrNotFound = errors.New("resource not found")
)
