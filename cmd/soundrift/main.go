package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/soundrift/soundrift/internal/artist"
	"github.com/soundrift/soundrift/internal/clock"
	"github.com/soundrift/soundrift/internal/config"
	"github.com/soundrift/soundrift/internal/flags"
	"github.com/soundrift/soundrift/internal/identity"
	"github.com/soundrift/soundrift/internal/invite"
	"github.com/soundrift/soundrift/internal/migration"
	"github.com/soundrift/soundrift/internal/observability"
	"github.com/soundrift/soundrift/internal/ratelimit"
	"github.com/soundrift/soundrift/internal/server"
	"github.com/soundrift/soundrift/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		flags.Module,
		ratelimit.Module,

		identity.Module,
		artist.Module,
		invite.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
