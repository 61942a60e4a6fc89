// Package gateway is the network boundary to the payment provider. It wraps
// the provider SDK behind a small interface, converts amounts to minor units,
// enforces the configured charge limits, and retries transient failures with
// exponential backoff. It holds no local state beyond its configuration.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/omnikart/omnikart/internal/config"
	"go.uber.org/zap"
)

var (
	ErrUnavailable    = errors.New("gateway_unavailable")
	ErrInvalidAmount  = errors.New("invalid_gateway_amount")
	ErrBelowMinimum   = errors.New("amount_below_gateway_minimum")
	ErrAboveTestCap   = errors.New("amount_above_test_cap")
	ErrInvalidPayment = errors.New("invalid_gateway_payment_id")
)

// Order is the provider's created order.
type Order struct {
	ID       string
	Amount   int64
	Currency string
}

// Refund is the provider's created refund.
type Refund struct {
	ID string
}

// remoteAPI is the provider surface the client needs. Satisfied by the
// razorpay SDK adapter in production and by fakes in tests.
type remoteAPI interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	CreateRefund(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error)
}

// SleepFunc blocks for d or until ctx is done. Injectable so retry schedules
// are testable without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Client struct {
	api        remoteAPI
	cfg        config.GatewayConfig
	limits     *config.LimitsHolder
	log        *zap.Logger
	sleep      SleepFunc
	maxRetries int
}

// NewClient builds a gateway client from credentials. Returns ErrUnavailable
// when the key pair is missing so callers can distinguish a configuration
// gap from a declined call.
func NewClient(cfg config.GatewayConfig, limits *config.LimitsHolder, log *zap.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrUnavailable
	}
	return newClient(newRazorpayAPI(cfg), cfg, limits, log), nil
}

// NewClientWithAPI injects a remote API implementation. Test seam.
func NewClientWithAPI(api remoteAPI, cfg config.GatewayConfig, limits *config.LimitsHolder, log *zap.Logger, sleep SleepFunc) *Client {
	c := newClient(api, cfg, limits, log)
	if sleep != nil {
		c.sleep = sleep
	}
	return c
}

func newClient(api remoteAPI, cfg config.GatewayConfig, limits *config.LimitsHolder, log *zap.Logger) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		api:        api,
		cfg:        cfg,
		limits:     limits,
		log:        log.Named("gateway.client"),
		sleep:      defaultSleep,
		maxRetries: maxRetries,
	}
}

// CreateRemoteOrder creates a provider order for amountMinor minor units.
func (c *Client) CreateRemoteOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]interface{}) (*Order, error) {
	if err := c.checkAmount(amountMinor); err != nil {
		return nil, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = c.cfg.Currency
	}

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.withRetry(ctx, "order.create", func() (map[string]interface{}, error) {
		return c.api.CreateOrder(data)
	})
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:       readString(body, "id"),
		Amount:   readInt64(body, "amount"),
		Currency: readString(body, "currency"),
	}, nil
}

// CreateRefund refunds amountMinor minor units of a captured payment.
func (c *Client) CreateRefund(ctx context.Context, gatewayPaymentID string, amountMinor int64, reason string) (*Refund, error) {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return nil, ErrInvalidPayment
	}
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	data := map[string]interface{}{}
	if reason != "" {
		data["notes"] = map[string]interface{}{"reason": reason}
	}

	body, err := c.withRetry(ctx, "refund.create", func() (map[string]interface{}, error) {
		return c.api.CreateRefund(gatewayPaymentID, int(amountMinor), data)
	})
	if err != nil {
		return nil, err
	}

	return &Refund{ID: readString(body, "id")}, nil
}

func (c *Client) checkAmount(amountMinor int64) error {
	if amountMinor <= 0 {
		return ErrInvalidAmount
	}
	limits := c.limits.Get()
	if amountMinor < limits.MinAmountMinor {
		return ErrBelowMinimum
	}
	if c.cfg.TestMode && amountMinor > limits.TestMaxAmountMinor {
		return ErrAboveTestCap
	}
	return nil
}

// withRetry runs call up to maxRetries times, sleeping 2^attempt seconds
// between attempts. The last provider error is returned unchanged so callers
// see provider diagnostics. Retries are blind: the provider may have
// succeeded on a timed-out attempt, so remote-order creation is at-least-once.
func (c *Client) withRetry(ctx context.Context, op string, call func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := call()
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.log.Warn("gateway call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == c.maxRetries {
			break
		}
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func readString(body map[string]interface{}, key string) string {
	value, ok := body[key]
	if !ok {
		return ""
	}
	if cast, ok := value.(string); ok {
		return cast
	}
	return ""
}

func readInt64(body map[string]interface{}, key string) int64 {
	switch cast := body[key].(type) {
	case float64:
		return int64(cast)
	case int64:
		return cast
	case int:
		return int64(cast)
	default:
		return 0
	}
}
