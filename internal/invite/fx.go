package invite

import (
	"github.com/soundrift/soundrift/internal/invite/repository"
	"github.com/soundrift/soundrift/internal/invite/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invite.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
