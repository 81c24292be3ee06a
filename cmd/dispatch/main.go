package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dispatch/internal/clock"
	"github.com/smallbiznis/dispatch/internal/config"
	"github.com/smallbiznis/dispatch/internal/geocode"
	"github.com/smallbiznis/dispatch/internal/logger"
	"github.com/smallbiznis/dispatch/internal/matching"
	"github.com/smallbiznis/dispatch/internal/migration"
	"github.com/smallbiznis/dispatch/internal/notify"
	"github.com/smallbiznis/dispatch/internal/observability/metrics"
	"github.com/smallbiznis/dispatch/internal/order"
	"github.com/smallbiznis/dispatch/internal/product"
	"github.com/smallbiznis/dispatch/internal/restaurant"
	"github.com/smallbiznis/dispatch/internal/scheduler"
	"github.com/smallbiznis/dispatch/internal/seed"
	"github.com/smallbiznis/dispatch/internal/server"
	"github.com/smallbiznis/dispatch/pkg/db"
	"github.com/smallbiznis/dispatch/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		telemetry.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		// Functional Domains
		product.Module,
		restaurant.Module,
		geocode.Module,
		notify.Module,
		order.Module,
		matching.Module,
		scheduler.Module,

		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
