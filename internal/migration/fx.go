package migration

import (
	"strings"

	"github.com/observetask/identity/internal/config"
	invitationdomain "github.com/observetask/identity/internal/invitation/domain"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/seed"
	sessiondomain "github.com/observetask/identity/internal/session/domain"
	userdomain "github.com/observetask/identity/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned migrations cover postgres; other dialects exist for
		// local development and fall back to the model schema.
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			err := conn.AutoMigrate(
				&userdomain.User{},
				&membershipdomain.Membership{},
				&sessiondomain.Session{},
				&invitationdomain.Invitation{},
			)
			if err != nil {
				return err
			}
		}

		return seed.EnsureBootstrapAdmin(conn, cfg)
	}),
)
