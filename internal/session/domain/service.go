package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// IssueRequest carries the metadata recorded with a new session.
type IssueRequest struct {
	UserID     snowflake.ID
	OrgID      snowflake.ID
	DeviceInfo string
	IPAddress  string
}

// Issued pairs a stored session with the raw token handed to the client.
// The raw token exists only in this value; it cannot be recovered later.
type Issued struct {
	Session  *Session
	RawToken string
}

type Service interface {
	// Issue mints a fresh session. When the user already holds the maximum
	// number of active sessions, the oldest one is revoked to make room.
	Issue(ctx context.Context, req IssueRequest) (*Issued, error)

	// Validate resolves a raw token to its live session.
	Validate(ctx context.Context, rawToken string) (*Session, error)

	// Rotate consumes the presented token and issues a replacement. Exactly
	// one concurrent caller wins; the rest get ErrSessionConsumed.
	Rotate(ctx context.Context, rawToken string) (*Issued, error)

	Revoke(ctx context.Context, actorUserID snowflake.ID, rawToken string) error
	RevokeByID(ctx context.Context, actorUserID, sessionID snowflake.ID) error
	RevokeAllForUser(ctx context.Context, userID snowflake.ID) (int64, error)

	ListActive(ctx context.Context, userID snowflake.ID) ([]Session, error)

	// SweepExpired deletes sessions whose expiry predates the moment the
	// sweep started. Repeating a sweep with no new expirations removes
	// nothing.
	SweepExpired(ctx context.Context) (int64, error)
}
