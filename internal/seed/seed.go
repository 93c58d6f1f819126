// Package seed bootstraps a first administrator on an empty database.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/config"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/role"
	userdomain "github.com/observetask/identity/internal/user/domain"
	"github.com/observetask/identity/internal/user/password"
	"gorm.io/gorm"
)

// EnsureBootstrapAdmin creates a SUPER_ADMIN with their own organization
// when bootstrap credentials are configured and no user exists yet. It is
// a no-op on a populated database.
func EnsureBootstrapAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userdomain.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hash, err := password.Hash(cfg.BootstrapAdminPassword)
		if err != nil {
			return err
		}

		user := &userdomain.User{
			ID:            node.Generate(),
			Email:         cfg.BootstrapAdminEmail,
			PasswordHash:  &hash,
			Provider:      userdomain.ProviderLocal,
			EmailVerified: true,
			IsActive:      true,
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		membership := &membershipdomain.Membership{
			ID:     node.Generate(),
			OrgID:  node.Generate(),
			UserID: user.ID,
			Role:   role.SuperAdmin.Code,
		}
		return tx.Create(membership).Error
	})
}
