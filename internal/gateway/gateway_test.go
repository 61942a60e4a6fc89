package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omnikart/omnikart/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	orderCalls  int
	refundCalls int
	failWith    error
	orderBody   map[string]interface{}
	refundBody  map[string]interface{}
	lastOrder   map[string]interface{}
}

func (f *fakeAPI) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	f.orderCalls++
	f.lastOrder = data
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.orderBody, nil
}

func (f *fakeAPI) CreateRefund(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error) {
	f.refundCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.refundBody, nil
}

func testClient(t *testing.T, api *fakeAPI, cfg config.GatewayConfig, sleep SleepFunc) *Client {
	t.Helper()
	limits := config.NewStaticLimitsHolder(config.DefaultGatewayLimits())
	return NewClientWithAPI(api, cfg, limits, zap.NewNop(), sleep)
}

func TestCreateRemoteOrder(t *testing.T) {
	api := &fakeAPI{orderBody: map[string]interface{}{
		"id":       "order_test123",
		"amount":   float64(19999),
		"currency": "INR",
	}}
	client := testClient(t, api, config.GatewayConfig{KeyID: "k", KeySecret: "s", Currency: "INR", MaxRetries: 3}, nil)

	order, err := client.CreateRemoteOrder(context.Background(), 19999, "inr", "rcpt-1", map[string]interface{}{"order_id": "A1"})
	require.NoError(t, err)
	assert.Equal(t, "order_test123", order.ID)
	assert.Equal(t, int64(19999), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, 1, api.orderCalls)
	assert.Equal(t, int64(19999), api.lastOrder["amount"])
	assert.Equal(t, "INR", api.lastOrder["currency"])
}

func TestCreateRemoteOrderAmountLimits(t *testing.T) {
	api := &fakeAPI{orderBody: map[string]interface{}{"id": "order_x"}}
	client := testClient(t, api, config.GatewayConfig{KeyID: "k", KeySecret: "s", Currency: "INR"}, nil)

	_, err := client.CreateRemoteOrder(context.Background(), 0, "INR", "r", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = client.CreateRemoteOrder(context.Background(), 99, "INR", "r", nil)
	assert.ErrorIs(t, err, ErrBelowMinimum)

	assert.Equal(t, 0, api.orderCalls, "rejected amounts must not reach the provider")
}

func TestCreateRemoteOrderTestModeCap(t *testing.T) {
	api := &fakeAPI{orderBody: map[string]interface{}{"id": "order_x"}}
	client := testClient(t, api, config.GatewayConfig{KeyID: "k", KeySecret: "s", Currency: "INR", TestMode: true}, nil)

	_, err := client.CreateRemoteOrder(context.Background(), 1_000_001, "INR", "r", nil)
	assert.ErrorIs(t, err, ErrAboveTestCap)
	assert.Equal(t, 0, api.orderCalls)

	_, err = client.CreateRemoteOrder(context.Background(), 1_000_000, "INR", "r", nil)
	assert.NoError(t, err)
}

func TestRetryBound(t *testing.T) {
	providerErr := errors.New("BAD_REQUEST_ERROR: upstream timeout")
	api := &fakeAPI{failWith: providerErr}

	var delays []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	client := testClient(t, api, config.GatewayConfig{KeyID: "k", KeySecret: "s", Currency: "INR", MaxRetries: 3}, sleep)

	_, err := client.CreateRemoteOrder(context.Background(), 500, "INR", "r", nil)
	require.Error(t, err)
	assert.Same(t, providerErr, err, "the last provider error is propagated unchanged")

	assert.Equal(t, 3, api.orderCalls)
	require.Len(t, delays, 2, "no sleep after the final attempt")
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1], "backoff delays must strictly increase")
	}
	assert.Equal(t, 2*time.Second, delays[0])
	assert.Equal(t, 4*time.Second, delays[1])
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	api := &fakeAPI{failWith: errors.New("unreachable")}
	sleep := func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	client := testClient(t, api, config.GatewayConfig{KeyID: "k", KeySecret: "s", Currency: "INR", MaxRetries: 3}, sleep)

	_, err := client.CreateRemoteOrder(context.Background(), 500, "INR", "r", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, api.orderCalls)
}

func TestCreateRefund(t *testing.T) {
	api := &fakeAPI{refundBody: map[string]interface{}{"id": "rfnd_1"}}
	client := testClient(t, api, config.GatewayConfig{KeyID: "k", KeySecret: "s", Currency: "INR"}, nil)

	refund, err := client.CreateRefund(context.Background(), "pay_1", 5000, "customer request")
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", refund.ID)

	_, err = client.CreateRefund(context.Background(), "", 5000, "")
	assert.ErrorIs(t, err, ErrInvalidPayment)

	_, err = client.CreateRefund(context.Background(), "pay_1", 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	limits := config.NewStaticLimitsHolder(config.DefaultGatewayLimits())
	_, err := NewClient(config.GatewayConfig{}, limits, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnavailable)
}
