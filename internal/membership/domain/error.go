package domain

import "errors"

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipExists   = errors.New("membership already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrActorNotMember     = errors.New("actor is not a member of the organization")
)
