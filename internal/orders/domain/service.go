package domain

import "context"

// PaymentRef is what the reconciler needs to know about a settled payment.
// The payment module owns the full record; reconciliation only reads this slice.
type PaymentRef struct {
	LocalOrderID     string
	Kind             Kind
	GatewayPaymentID string
}

// Reconciler propagates a payment-state change into the linked order
// aggregate. A nil summary means the order was not found; that is never an
// error, the payment transition has already been committed.
type Reconciler interface {
	MarkPaid(ctx context.Context, ref PaymentRef) (*OrderSummary, error)
	MarkFailed(ctx context.Context, ref PaymentRef) (*OrderSummary, error)
}
