package repositories

import "context"

// GuardianLink is a pending or resolved guardian-connection request.
type GuardianLink struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // pending|approved|rejected
}

// GuardianRepository abstracts the guardian-relationship backend. Approval
// itself happens server-side; the client only requests links and polls their
// status.
type GuardianRepository interface {
	RequestLink(ctx context.Context, userID, guardianEmail string) (GuardianLink, error)
	LinkStatus(ctx context.Context, requestID string) (GuardianLink, error)
}
