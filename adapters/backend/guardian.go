package backend

import (
	"context"
	"fmt"

	"github.com/somiapp/somi-core/domain/repositories"
)

var _ repositories.GuardianRepository = (*Client)(nil)

type requestLinkRequest struct {
	UserID        string `json:"user_id"`
	GuardianEmail string `json:"guardian_email"`
}

// RequestLink implements repositories.GuardianRepository
func (c *Client) RequestLink(ctx context.Context, userID, guardianEmail string) (repositories.GuardianLink, error) {
	var link repositories.GuardianLink
	err := c.postJSON(ctx, "/api/v1/guardians/links", requestLinkRequest{
		UserID:        userID,
		GuardianEmail: guardianEmail,
	}, &link)
	if err != nil {
		return repositories.GuardianLink{}, fmt.Errorf("request guardian link: %w", err)
	}
	return link, nil
}

// LinkStatus implements repositories.GuardianRepository
func (c *Client) LinkStatus(ctx context.Context, requestID string) (repositories.GuardianLink, error) {
	var link repositories.GuardianLink
	path := fmt.Sprintf("/api/v1/guardians/links/%s", requestID)
	if err := c.getJSON(ctx, path, &link); err != nil {
		return repositories.GuardianLink{}, fmt.Errorf("guardian link status: %w", err)
	}
	return link, nil
}
