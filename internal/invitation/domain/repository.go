package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, inv *Invitation) error
	FindByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	FindByToken(ctx context.Context, token string) (*Invitation, error)

	// ExistsPending reports whether an unexpired PENDING invitation already
	// exists for the email within the organization.
	ExistsPending(ctx context.Context, email string, orgID snowflake.ID, now time.Time) (bool, error)

	// MarkAccepted flips PENDING to ACCEPTED only if the row is still
	// pending. Returns ErrAlreadyProcessed when it is not.
	MarkAccepted(ctx context.Context, id snowflake.ID, at time.Time) error

	// MarkRevoked flips PENDING to REVOKED only if the row is still
	// pending. Returns ErrAlreadyProcessed when it is not.
	MarkRevoked(ctx context.Context, id snowflake.ID, at time.Time) error

	// ExpireOutdated relabels every PENDING invitation whose expiry is at
	// or before the cutoff.
	ExpireOutdated(ctx context.Context, cutoff time.Time) (int64, error)

	// ListActionableByEmail returns unexpired PENDING invitations for the
	// email, newest first.
	ListActionableByEmail(ctx context.Context, email string, now time.Time) ([]Invitation, error)

	ListPendingByOrganization(ctx context.Context, orgID snowflake.ID, now time.Time) ([]Invitation, error)
}
