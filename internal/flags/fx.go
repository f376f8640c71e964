package flags

import (
	"github.com/soundrift/soundrift/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("flags",
	fx.Provide(newStore),
	fx.Invoke(func(s *Store, lc fx.Lifecycle) error {
		return s.Watch(lc)
	}),
)

func newStore(cfg config.Config, log *zap.Logger) *Store {
	return NewStore(cfg.FlagsFile, log)
}
