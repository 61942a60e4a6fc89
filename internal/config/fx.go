package config

import "go.uber.org/fx"

// Module wires application configuration and the gateway limits holder.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewLimitsHolder),
)
