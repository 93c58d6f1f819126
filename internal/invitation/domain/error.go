package domain

import "errors"

var (
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInvitationExpired   = errors.New("invitation expired")
	ErrAlreadyProcessed    = errors.New("invitation already processed")
	ErrDuplicateInvitation = errors.New("pending invitation already exists")
	ErrInvalidInvitation   = errors.New("invalid invitation")
)
