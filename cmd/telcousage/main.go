package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcousage/internal/clock"
	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/smallbiznis/telcousage/internal/migration"
	"github.com/smallbiznis/telcousage/internal/observability"
	"github.com/smallbiznis/telcousage/internal/server"
	"github.com/smallbiznis/telcousage/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
