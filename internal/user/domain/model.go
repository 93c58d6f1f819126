// Package domain contains core types for the user directory.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// AuthProvider identifies the identity source of an account.
type AuthProvider string

const (
	ProviderLocal     AuthProvider = "LOCAL"
	ProviderAuth0     AuthProvider = "AUTH0"
	ProviderSAML      AuthProvider = "SAML"
	ProviderGoogle    AuthProvider = "GOOGLE"
	ProviderMicrosoft AuthProvider = "MICROSOFT"
)

// IsSSO reports whether the provider is an external identity source.
func (p AuthProvider) IsSSO() bool {
	return p != ProviderLocal
}

// RequiresExternalID reports whether accounts from this provider must carry
// a provider-scoped external identifier.
func (p AuthProvider) RequiresExternalID() bool {
	return p.IsSSO()
}

// ExternalIDPrefix returns the expected external-id prefix for the provider,
// empty for LOCAL.
func (p AuthProvider) ExternalIDPrefix() string {
	switch p {
	case ProviderAuth0:
		return "auth0|"
	case ProviderGoogle:
		return "google-oauth2|"
	case ProviderMicrosoft:
		return "microsoft|"
	case ProviderSAML:
		return "saml|"
	default:
		return ""
	}
}

// ValidExternalID reports whether externalID matches the provider's format.
func (p AuthProvider) ValidExternalID(externalID string) bool {
	if !p.RequiresExternalID() {
		return externalID == ""
	}
	prefix := p.ExternalIDPrefix()
	return strings.HasPrefix(externalID, prefix) && len(externalID) > len(prefix)
}

// User represents a directory account. Password hash is present only for
// LOCAL users with a set password.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Email         string       `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash  *string      `gorm:"type:text"`
	Provider      AuthProvider `gorm:"type:text;not null;default:'LOCAL'"`
	ExternalID    *string      `gorm:"type:text;index"`
	FirstName     string       `gorm:"type:text;not null"`
	LastName      string       `gorm:"type:text;not null"`
	EmailVerified bool         `gorm:"not null;default:false"`
	IsActive      bool         `gorm:"not null;default:true"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// FullName joins the name fields, falling back to email.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// HasPassword reports whether a local credential is set.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && strings.TrimSpace(*u.PasswordHash) != ""
}

// CanLoginWithPassword gates local password authentication.
func (u User) CanLoginWithPassword() bool {
	return u.Provider == ProviderLocal && u.HasPassword() && u.IsActive && u.EmailVerified
}
