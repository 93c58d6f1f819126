// Package domain contains persistence models for refresh sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Session is one refresh credential. The raw token never touches storage;
// only its SHA-256 hex digest does.
type Session struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID `gorm:"not null;index" json:"user_id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	TokenHash  string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	DeviceInfo string       `gorm:"type:text" json:"device_info,omitempty"`
	IPAddress  string       `gorm:"type:text" json:"ip_address,omitempty"`
	ExpiresAt  time.Time    `gorm:"not null;index" json:"expires_at"`
	RevokedAt  *time.Time   `json:"revoked_at,omitempty"`
	RotatedAt  *time.Time   `json:"rotated_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// ActiveAt reports whether the session is usable at the given instant.
// Expiry is derived from the stored timestamp every time; a session past
// its expiry is dead even if no sweep has touched it yet.
func (s *Session) ActiveAt(now time.Time) bool {
	return s.RevokedAt == nil && s.RotatedAt == nil && now.Before(s.ExpiresAt)
}
