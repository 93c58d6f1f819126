package session

import (
	"github.com/observetask/identity/internal/session/repository"
	"github.com/observetask/identity/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
