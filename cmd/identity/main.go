package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	"github.com/observetask/identity/internal/invitation"
	"github.com/observetask/identity/internal/membership"
	"github.com/observetask/identity/internal/migration"
	"github.com/observetask/identity/internal/observability"
	"github.com/observetask/identity/internal/server"
	"github.com/observetask/identity/internal/session"
	"github.com/observetask/identity/internal/sweeper"
	"github.com/observetask/identity/internal/token"
	"github.com/observetask/identity/internal/user"
	"github.com/observetask/identity/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		authorization.Module,
		user.Module,
		membership.Module,
		session.Module,
		invitation.Module,
		token.Module,

		migration.Module,
		sweeper.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
