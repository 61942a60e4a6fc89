package domain

import (
	"context"
	"errors"
	"math"

	"github.com/omnikart/omnikart/internal/config"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	"github.com/omnikart/omnikart/pkg/db/pagination"
)

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidOrderID     = errors.New("invalid_order_id")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidContact     = errors.New("invalid_contact")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrDuplicateOrder     = errors.New("duplicate_gateway_order")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrNotFound           = errors.New("payment_not_found")
	ErrNotCaptured        = errors.New("payment_not_captured")
	ErrRefundExceedsPaid  = errors.New("refund_exceeds_captured_amount")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
)

// ToMinorUnits converts a major-unit amount to the smallest currency
// denomination (rupees to paise).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts back to the major unit.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

type CreateOrderRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	OrderID     string  `json:"order_id"`
	OrderModel  string  `json:"order_model"`
	Description string  `json:"description"`
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	Contact     string  `json:"contact"`
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id,omitempty"`
}

type CreateOrderResponse struct {
	GatewayOrder GatewayOrder   `json:"gateway_order"`
	Payment      *PaymentRecord `json:"payment"`
}

type VerifyRequest struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type VerifyResponse struct {
	Payment *PaymentRecord             `json:"payment"`
	Order   *ordersdomain.OrderSummary `json:"order,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	OrderID    string `form:"order_id"`
	OrderModel string `form:"order_model"`
}

type ListResponse struct {
	Payments []*PaymentRecord    `json:"payments"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type RefundRequest struct {
	// PaymentID is the ledger record id, as a string.
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type RefundResponse struct {
	RefundID string  `json:"refund_id"`
	Amount   float64 `json:"amount"`
	Status   Status  `json:"status"`
}

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	// ProcessWebhook authenticates and applies one raw gateway event. Unknown
	// event types and ledger misses are acknowledged, not errors.
	ProcessWebhook(ctx context.Context, body []byte, signatureHeader string) error
	ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	ListPayments(ctx context.Context, req ListRequest) (*ListResponse, error)
	// Reconfigure rebuilds the gateway client from fresh credentials.
	Reconfigure(cfg config.GatewayConfig) error
	GetByID(ctx context.Context, id string) (*PaymentRecord, error)
}
