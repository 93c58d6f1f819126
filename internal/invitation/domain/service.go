package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
)

type InviteRequest struct {
	OrgID     snowflake.ID
	Email     string
	Role      string
	FirstName string
	LastName  string
}

type Service interface {
	// Invite creates a pending invitation. The actor must be allowed to
	// assign the invited role within the organization.
	Invite(ctx context.Context, actorUserID snowflake.ID, req InviteRequest) (*Invitation, error)

	// Preview resolves a token to its invitation without consuming it,
	// failing the same way Accept would for dead tokens.
	Preview(ctx context.Context, token string) (*Invitation, error)

	// Accept consumes the invitation token and grants the accepting user
	// the invited role. The accepting user's email must match the invited
	// address. Exactly one concurrent accept wins.
	Accept(ctx context.Context, token string, userID snowflake.ID, userEmail string) (*membershipdomain.Membership, error)

	// Revoke withdraws a pending invitation. Revoking one that already
	// reached a terminal state is a no-op success.
	Revoke(ctx context.Context, actorUserID, invitationID snowflake.ID) error

	FindActionable(ctx context.Context, email string) ([]Invitation, error)
	ListPending(ctx context.Context, actorUserID, orgID snowflake.ID) ([]Invitation, error)

	// SweepExpired relabels pending invitations whose expiry predates the
	// start of the sweep.
	SweepExpired(ctx context.Context) (int64, error)
}
