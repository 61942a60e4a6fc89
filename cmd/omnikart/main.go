package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/omnikart/omnikart/internal/clock"
	"github.com/omnikart/omnikart/internal/config"
	"github.com/omnikart/omnikart/internal/logger"
	"github.com/omnikart/omnikart/internal/migration"
	obsmetrics "github.com/omnikart/omnikart/internal/observability/metrics"
	"github.com/omnikart/omnikart/internal/orders"
	"github.com/omnikart/omnikart/internal/payment"
	"github.com/omnikart/omnikart/internal/ratelimit"
	"github.com/omnikart/omnikart/internal/server"
	"github.com/omnikart/omnikart/internal/sweeper"
	"github.com/omnikart/omnikart/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(clock.System),
		db.Module,
		obsmetrics.Module,
		migration.Module,
		ratelimit.Module,

		orders.Module,
		payment.Module,
		sweeper.Module,

		server.Module,
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
