package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	"gorm.io/datatypes"
)

// Status is the ledger lifecycle of one payment attempt.
type Status string

const (
	StatusPending           Status = "pending"
	StatusCaptured          Status = "captured"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// ParseStatus validates a client-supplied status filter.
func ParseStatus(raw string) (Status, error) {
	status := Status(raw)
	switch status {
	case StatusPending, StatusCaptured, StatusFailed, StatusRefunded, StatusPartiallyRefunded:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Payment methods reported by the gateway on capture.
const (
	MethodCard       = "card"
	MethodNetbanking = "netbanking"
	MethodWallet     = "wallet"
	MethodUPI        = "upi"
	MethodEMI        = "emi"
	MethodCOD        = "cod"
)

// PaymentRecord is one row per payment attempt. Rows are never deleted;
// refunds are transitions, not removals.
type PaymentRecord struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	GatewayOrderID   string            `json:"gateway_order_id" gorm:"type:text;not null;uniqueIndex"`
	GatewayPaymentID string            `json:"gateway_payment_id,omitempty" gorm:"type:text;index"`
	GatewaySignature string            `json:"-" gorm:"type:text"`
	LocalOrderID     string            `json:"order_id" gorm:"type:text;not null;index"`
	OrderKind        ordersdomain.Kind `json:"order_model" gorm:"type:text;not null"`
	Amount           float64           `json:"amount" gorm:"not null"`
	Currency         string            `json:"currency" gorm:"type:text;not null"`
	Status           Status            `json:"status" gorm:"type:text;not null"`
	Method           string            `json:"method,omitempty" gorm:"type:text"`
	RefundID         string            `json:"refund_id,omitempty" gorm:"type:text"`
	RefundAmount     float64           `json:"refund_amount,omitempty"`
	RefundStatus     string            `json:"refund_status,omitempty" gorm:"type:text"`
	ErrorCode        string            `json:"error_code,omitempty" gorm:"type:text"`
	ErrorDescription string            `json:"error_description,omitempty" gorm:"type:text"`
	UserID           string            `json:"user_id,omitempty" gorm:"type:text"`
	Email            string            `json:"email" gorm:"type:text"`
	Contact          string            `json:"contact" gorm:"type:text"`
	WebhookPayload   datatypes.JSON    `json:"-" gorm:"type:jsonb"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (PaymentRecord) TableName() string { return "payments" }

// AmountMinor is the record amount in minor currency units.
func (p *PaymentRecord) AmountMinor() int64 {
	return ToMinorUnits(p.Amount)
}

// Gateway webhook event names, per the provider contract.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// WebhookEvent is the provider's raw event envelope.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	Payment *PaymentWrapper `json:"payment,omitempty"`
	Refund  *RefundWrapper  `json:"refund,omitempty"`
}

type PaymentWrapper struct {
	Entity PaymentEntity `json:"entity"`
}

type RefundWrapper struct {
	Entity RefundEntity `json:"entity"`
}

// PaymentEntity is the payment object inside capture/failure events.
// Amount is in minor units.
type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// RefundEntity is the refund object inside refund.processed events.
type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}
