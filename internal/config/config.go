package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Sweeper   SweeperConfig

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// GatewayConfig carries the payment-gateway credentials and operating knobs.
type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	MaxRetries    int
	TestMode      bool
	// TestMaxAmountMinor caps a single charge in test mode, in minor units.
	// Zero means "use the limits file default".
	TestMaxAmountMinor int64
}

// Configured reports whether the gateway credentials are present.
func (g GatewayConfig) Configured() bool {
	return strings.TrimSpace(g.KeyID) != "" && strings.TrimSpace(g.KeySecret) != ""
}

// RateLimitConfig controls the redis-backed request limiter on the payment
// endpoints. Disabled by default.
type RateLimitConfig struct {
	Enabled        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OrderRate      float64
	OrderBurst     int
	WebhookRate    float64
	WebhookBurst   int
	LockTTLSeconds int
}

// SweeperConfig controls the stale-pending payment sweep.
type SweeperConfig struct {
	Enabled      bool
	Interval     time.Duration
	PendingAfter time.Duration
	BatchSize    int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "omnikart"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Gateway: GatewayConfig{
			KeyID:              strings.TrimSpace(getenv("RAZORPAY_KEY_ID", "")),
			KeySecret:          strings.TrimSpace(getenv("RAZORPAY_KEY_SECRET", "")),
			WebhookSecret:      strings.TrimSpace(getenv("RAZORPAY_WEBHOOK_SECRET", "")),
			Currency:           strings.ToUpper(getenv("PAYMENT_CURRENCY", "INR")),
			Timeout:            time.Duration(getenvInt("PAYMENT_TIMEOUT_SECONDS", 30)) * time.Second,
			MaxRetries:         getenvInt("PAYMENT_MAX_RETRIES", 3),
			TestMode:           getenvBool("PAYMENT_TEST_MODE", false),
			TestMaxAmountMinor: getenvInt64("PAYMENT_TEST_MAX_AMOUNT", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getenvBool("RATELIMIT_ENABLED", false),
			RedisAddr:      strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:  getenv("REDIS_PASSWORD", ""),
			RedisDB:        getenvInt("REDIS_DB", 0),
			OrderRate:      getenvFloat("RATELIMIT_ORDER_RATE", 5),
			OrderBurst:     getenvInt("RATELIMIT_ORDER_BURST", 10),
			WebhookRate:    getenvFloat("RATELIMIT_WEBHOOK_RATE", 50),
			WebhookBurst:   getenvInt("RATELIMIT_WEBHOOK_BURST", 100),
			LockTTLSeconds: getenvInt("RATELIMIT_LOCK_TTL_SECONDS", 60),
		},
		Sweeper: SweeperConfig{
			Enabled:      getenvBool("SWEEPER_ENABLED", true),
			Interval:     time.Duration(getenvInt("SWEEPER_INTERVAL_SECONDS", 300)) * time.Second,
			PendingAfter: time.Duration(getenvInt("SWEEPER_PENDING_AFTER_SECONDS", 1800)) * time.Second,
			BatchSize:    getenvInt("SWEEPER_BATCH_SIZE", 100),
		},
		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "omnikart"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
