package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/fulfillment"
	"github.com/smallbiznis/mysteryart/internal/observability"
	"github.com/smallbiznis/mysteryart/internal/providers"
	"github.com/smallbiznis/mysteryart/internal/ratelimit"
	"github.com/smallbiznis/mysteryart/internal/scheduler"
	"github.com/smallbiznis/mysteryart/internal/tier"
	"github.com/smallbiznis/mysteryart/pkg/db"
	"go.uber.org/fx"
)

// The sweeper runs apart from the HTTP service. It shares fulfillment
// records through the database store and order locks through redis.
func main() {
	cfg := config.Load()
	if !cfg.UsesDatabase() || cfg.Fulfillment.Locker != config.LockerRedis {
		fmt.Fprintln(os.Stderr, "sweeper requires FULFILLMENT_STORE=database and FULFILLMENT_LOCKER=redis")
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the sweeper
		tier.Module,
		fulfillment.Module,
		providers.Module,
		ratelimit.Module,
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),

		// No server module!
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
