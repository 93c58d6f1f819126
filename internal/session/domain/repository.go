package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, s *Session) error
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)

	// MarkRotated flips the session to rotated only if it is still live.
	// Returns ErrSessionConsumed when another request got there first.
	MarkRotated(ctx context.Context, id snowflake.ID, at time.Time) error

	// Revoke marks the session revoked. Revoking an already revoked or
	// rotated session is a no-op.
	Revoke(ctx context.Context, id snowflake.ID, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID snowflake.ID, at time.Time) (int64, error)

	ListActiveByUser(ctx context.Context, userID snowflake.ID, now time.Time) ([]Session, error)
	CountActiveByUser(ctx context.Context, userID snowflake.ID, now time.Time) (int64, error)
	OldestActiveByUser(ctx context.Context, userID snowflake.ID, now time.Time) (*Session, error)

	// DeleteExpired removes every session whose expiry is at or before the
	// cutoff, regardless of revocation state.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
