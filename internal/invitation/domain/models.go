// Package domain contains persistence models for organization invitations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
	StatusRevoked  Status = "REVOKED"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRevoked
}

type Invitation struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email      string       `gorm:"type:text;not null;index" json:"email"`
	Role       string       `gorm:"type:text;not null" json:"role"`
	Token      string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Status     Status       `gorm:"type:text;not null;default:PENDING" json:"status"`
	InvitedBy  snowflake.ID `gorm:"not null" json:"invited_by"`
	FirstName  string       `gorm:"type:text" json:"first_name,omitempty"`
	LastName   string       `gorm:"type:text" json:"last_name,omitempty"`
	ExpiresAt  time.Time    `gorm:"not null;index" json:"expires_at"`
	AcceptedAt *time.Time   `json:"accepted_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

// ActionableAt reports whether the invitation can still be accepted at the
// given instant. A stored PENDING row past its expiry is not actionable
// even before a sweep relabels it.
func (i *Invitation) ActionableAt(now time.Time) bool {
	return i.Status == StatusPending && now.Before(i.ExpiresAt)
}
