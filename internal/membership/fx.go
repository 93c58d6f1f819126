package membership

import (
	"github.com/observetask/identity/internal/membership/repository"
	"github.com/observetask/identity/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
