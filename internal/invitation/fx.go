package invitation

import (
	"github.com/observetask/identity/internal/invitation/repository"
	"github.com/observetask/identity/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
