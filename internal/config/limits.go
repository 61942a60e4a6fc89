package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GatewayLimits are the operating limits applied to gateway charges,
// in minor currency units.
type GatewayLimits struct {
	MinAmountMinor     int64 `mapstructure:"minAmountMinor"`
	TestMaxAmountMinor int64 `mapstructure:"testMaxAmountMinor"`
}

func DefaultGatewayLimits() GatewayLimits {
	return GatewayLimits{
		// Razorpay rejects orders below 100 minor units (INR 1.00).
		MinAmountMinor: 100,
		// Sandbox ceiling: INR 10,000.00 per charge.
		TestMaxAmountMinor: 1_000_000,
	}
}

// LimitsHolder serves the current GatewayLimits and hot-reloads them from an
// optional limits.yml. Env-provided overrides win over file defaults.
type LimitsHolder struct {
	current atomic.Value // holds GatewayLimits
}

func NewLimitsHolder(cfg Config) (*LimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/omnikart/config")
	v.AddConfigPath("/etc/omnikart")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OMNIKART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGatewayLimits()
	if cfg.Gateway.TestMaxAmountMinor > 0 {
		defaults.TestMaxAmountMinor = cfg.Gateway.TestMaxAmountMinor
	}
	v.SetDefault("gateway.minAmountMinor", defaults.MinAmountMinor)
	v.SetDefault("gateway.testMaxAmountMinor", defaults.TestMaxAmountMinor)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var limits GatewayLimits
	if err := v.UnmarshalKey("gateway", &limits); err != nil {
		return nil, err
	}
	if err := validateLimits(limits); err != nil {
		return nil, err
	}

	holder := &LimitsHolder{}
	holder.current.Store(limits)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated GatewayLimits
			if err := v.UnmarshalKey("gateway", &updated); err != nil {
				log.Printf("[gateway-limits] reload failed: %v", err)
				return
			}
			if err := validateLimits(updated); err != nil {
				log.Printf("[gateway-limits] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[gateway-limits] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticLimitsHolder returns a holder pinned to the given limits. Test seam.
func NewStaticLimitsHolder(limits GatewayLimits) *LimitsHolder {
	holder := &LimitsHolder{}
	holder.current.Store(limits)
	return holder
}

func (h *LimitsHolder) Get() GatewayLimits {
	return h.current.Load().(GatewayLimits)
}

func validateLimits(limits GatewayLimits) error {
	if limits.MinAmountMinor <= 0 {
		return errors.New("gateway.minAmountMinor must be positive")
	}
	if limits.TestMaxAmountMinor < limits.MinAmountMinor {
		return errors.New("gateway.testMaxAmountMinor below minimum charge")
	}
	return nil
}
