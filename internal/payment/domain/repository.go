package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	"gorm.io/gorm"
)

// CaptureOutcome reports what a conditional capture actually did.
type CaptureOutcome int

const (
	CaptureApplied CaptureOutcome = iota
	// CaptureAlreadyDone means the row had already left pending; the
	// transition is a no-op, not an error.
	CaptureAlreadyDone
	CaptureNoMatch
)

type CaptureParams struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Method           string
	Payload          []byte
}

type FailParams struct {
	GatewayOrderID   string
	GatewayPaymentID string
	ErrorCode        string
	ErrorDescription string
	Payload          []byte
}

// ListParams filters the ledger listing. Zero values mean "no filter".
// Results come back newest first; AfterID resumes below a previous page.
type ListParams struct {
	Status       Status
	LocalOrderID string
	OrderKind    ordersdomain.Kind
	AfterID      snowflake.ID
	Limit        int
}

type RefundParams struct {
	ID           snowflake.ID
	RefundID     string
	RefundAmount float64
	RefundStatus string
	Status       Status
}

// Repository is the payment ledger. Every transition is a single conditional
// UPDATE keyed on the current status, so concurrent verify/webhook deliveries
// cannot produce conflicting writes.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rec *PaymentRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentRecord, error)
	FindByGatewayOrderID(ctx context.Context, db *gorm.DB, gatewayOrderID string) (*PaymentRecord, error)
	FindByGatewayPaymentID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*PaymentRecord, error)
	FindByLocalOrder(ctx context.Context, db *gorm.DB, localOrderID string, kind ordersdomain.Kind) (*PaymentRecord, error)
	List(ctx context.Context, db *gorm.DB, params ListParams) ([]*PaymentRecord, error)
	CaptureByOrderID(ctx context.Context, db *gorm.DB, params CaptureParams) (*PaymentRecord, CaptureOutcome, error)
	FailByOrderID(ctx context.Context, db *gorm.DB, params FailParams) (*PaymentRecord, CaptureOutcome, error)
	MarkRefunded(ctx context.Context, db *gorm.DB, params RefundParams) (*PaymentRecord, bool, error)
}
