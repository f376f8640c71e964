package identity

import (
	"time"

	"github.com/soundrift/soundrift/internal/config"
	"github.com/soundrift/soundrift/internal/identity/repository"
	"github.com/soundrift/soundrift/internal/identity/service"
	"github.com/soundrift/soundrift/internal/identity/token"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(newTokenManager),
	fx.Provide(service.New),
)

func newTokenManager(cfg config.Config) *token.Manager {
	return token.NewManager(cfg.AuthJWTSecret, time.Duration(cfg.AuthTokenTTLMin)*time.Minute)
}
