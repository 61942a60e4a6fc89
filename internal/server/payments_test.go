package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/omnikart/omnikart/internal/config"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	paymentdomain "github.com/omnikart/omnikart/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPaymentService struct {
	createErr  error
	verifyErr  error
	webhookErr error
	refundErr  error
	getErr     error

	lastWebhookSig string
}

func (s *stubPaymentService) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (*paymentdomain.CreateOrderResponse, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &paymentdomain.CreateOrderResponse{
		GatewayOrder: paymentdomain.GatewayOrder{ID: "order_1", Amount: 50000, Currency: "INR"},
		Payment:      &paymentdomain.PaymentRecord{Status: paymentdomain.StatusPending},
	}, nil
}

func (s *stubPaymentService) VerifyPayment(ctx context.Context, req paymentdomain.VerifyRequest) (*paymentdomain.VerifyResponse, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &paymentdomain.VerifyResponse{
		Payment: &paymentdomain.PaymentRecord{Status: paymentdomain.StatusCaptured},
	}, nil
}

func (s *stubPaymentService) ProcessWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	s.lastWebhookSig = signatureHeader
	return s.webhookErr
}

func (s *stubPaymentService) ProcessRefund(ctx context.Context, req paymentdomain.RefundRequest) (*paymentdomain.RefundResponse, error) {
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	return &paymentdomain.RefundResponse{RefundID: "rfnd_1", Amount: req.Amount, Status: paymentdomain.StatusRefunded}, nil
}

func (s *stubPaymentService) ListPayments(ctx context.Context, req paymentdomain.ListRequest) (*paymentdomain.ListResponse, error) {
	return &paymentdomain.ListResponse{Payments: []*paymentdomain.PaymentRecord{}}, nil
}

func (s *stubPaymentService) Reconfigure(cfg config.GatewayConfig) error { return nil }

func (s *stubPaymentService) GetByID(ctx context.Context, id string) (*paymentdomain.PaymentRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &paymentdomain.PaymentRecord{Status: paymentdomain.StatusCaptured}, nil
}

func newTestServer(t *testing.T, svc paymentdomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := NewEngine(nil)
	NewServer(Params{Gin: engine, Cfg: config.Config{}, Log: zap.NewNop(), PaymentSvc: svc})
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, payload any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreateOrderRoute(t *testing.T) {
	engine := newTestServer(t, &stubPaymentService{})

	w := doJSON(t, engine, http.MethodPost, "/api/v1/payments/orders", paymentdomain.CreateOrderRequest{
		Amount: 500, OrderID: "A1", OrderModel: "TaxiRide", Email: "a@b.com", Contact: "987",
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "order_1")
}

func TestCreateOrderRouteMapsErrors(t *testing.T) {
	cases := []struct {
		name     string
		svcErr   error
		wantCode int
	}{
		{"validation", paymentdomain.ErrInvalidAmount, http.StatusBadRequest},
		{"unknown kind", ordersdomain.ErrUnsupportedKind, http.StatusBadRequest},
		{"gateway down", paymentdomain.ErrGatewayUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestServer(t, &stubPaymentService{createErr: tc.svcErr})
			w := doJSON(t, engine, http.MethodPost, "/api/v1/payments/orders", paymentdomain.CreateOrderRequest{Amount: 1}, nil)
			assert.Equal(t, tc.wantCode, w.Code)
		})
	}

	// Malformed JSON never reaches the service.
	engine := newTestServer(t, &stubPaymentService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyRoute(t *testing.T) {
	engine := newTestServer(t, &stubPaymentService{})
	w := doJSON(t, engine, http.MethodPost, "/api/v1/payments/verify", paymentdomain.VerifyRequest{
		GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", GatewaySignature: "sig",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	engine = newTestServer(t, &stubPaymentService{verifyErr: paymentdomain.ErrInvalidSignature})
	w = doJSON(t, engine, http.MethodPost, "/api/v1/payments/verify", paymentdomain.VerifyRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_signature")

	engine = newTestServer(t, &stubPaymentService{verifyErr: paymentdomain.ErrNotFound})
	w = doJSON(t, engine, http.MethodPost, "/api/v1/payments/verify", paymentdomain.VerifyRequest{}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookRoute(t *testing.T) {
	svc := &stubPaymentService{}
	engine := newTestServer(t, svc)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/payments/webhook",
		map[string]any{"event": "payment.captured"},
		map[string]string{SignatureHeader: "abc123"},
	)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
	assert.Equal(t, "abc123", svc.lastWebhookSig, "signature header is forwarded untouched")

	engine = newTestServer(t, &stubPaymentService{webhookErr: paymentdomain.ErrInvalidSignature})
	w = doJSON(t, engine, http.MethodPost, "/api/v1/payments/webhook", map[string]any{"event": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefundRoute(t *testing.T) {
	engine := newTestServer(t, &stubPaymentService{})
	w := doJSON(t, engine, http.MethodPost, "/api/v1/payments/refund", paymentdomain.RefundRequest{PaymentID: "1", Amount: 100}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rfnd_1")

	engine = newTestServer(t, &stubPaymentService{refundErr: paymentdomain.ErrNotCaptured})
	w = doJSON(t, engine, http.MethodPost, "/api/v1/payments/refund", paymentdomain.RefundRequest{PaymentID: "1"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	engine = newTestServer(t, &stubPaymentService{refundErr: paymentdomain.ErrRefundExceedsPaid})
	w = doJSON(t, engine, http.MethodPost, "/api/v1/payments/refund", paymentdomain.RefundRequest{PaymentID: "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPaymentsRoute(t *testing.T) {
	engine := newTestServer(t, &stubPaymentService{})
	w := doJSON(t, engine, http.MethodGet, "/api/v1/payments?status=captured&page_size=5", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payments")
}

func TestGetPaymentRoute(t *testing.T) {
	engine := newTestServer(t, &stubPaymentService{})
	w := doJSON(t, engine, http.MethodGet, "/api/v1/payments/123", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	engine = newTestServer(t, &stubPaymentService{getErr: paymentdomain.ErrNotFound})
	w = doJSON(t, engine, http.MethodGet, "/api/v1/payments/123", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
