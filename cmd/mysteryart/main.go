package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/migration"
	"github.com/smallbiznis/mysteryart/internal/observability"
	"github.com/smallbiznis/mysteryart/internal/server"
	"github.com/smallbiznis/mysteryart/pkg/db"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()

	options := []fx.Option{
		// Core Infrastructure
		fx.Supply(cfg),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,

		// Functional Domains
		server.Module,
	}
	if cfg.UsesDatabase() {
		options = append(options,
			db.Module,
			migration.Module,
		)
	}

	fx.New(options...).Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
