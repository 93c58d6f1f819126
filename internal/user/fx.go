package user

import (
	"github.com/observetask/identity/internal/user/repository"
	"github.com/observetask/identity/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
