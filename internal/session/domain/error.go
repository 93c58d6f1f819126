package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidSession  = errors.New("invalid session")

	// ErrSessionConsumed signals that a rotation lost the race: the
	// credential was already rotated or revoked by another request.
	ErrSessionConsumed = errors.New("session already consumed")
)
