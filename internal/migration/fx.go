package migration

import (
	"github.com/soundrift/soundrift/internal/config"
	"github.com/soundrift/soundrift/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if err := Run(conn); err != nil {
			return err
		}
		if !cfg.IsProduction() {
			return seed.EnsureAdmin(conn)
		}
		return nil
	}),
)
