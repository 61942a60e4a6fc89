package reconciler

import (
	"context"
	"fmt"
	"time"

	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// binding describes how one order kind maps a payment outcome onto its table.
// Registering a new kind is one entry here; the payment state machine is
// untouched.
type binding struct {
	table        string
	statusColumn string
	paidStatus   string
	// stampColumn is set for kinds that record the moment the paid
	// transition happened (taxi accepted_at, porter assigned_at).
	stampColumn string
}

var bindings = map[ordersdomain.Kind]binding{
	ordersdomain.KindRetailOrder:   {table: "retail_orders", statusColumn: "status", paidStatus: "completed"},
	ordersdomain.KindFoodOrder:     {table: "food_orders", statusColumn: "status", paidStatus: "confirmed"},
	ordersdomain.KindGroceryOrder:  {table: "grocery_orders", statusColumn: "status", paidStatus: "confirmed"},
	ordersdomain.KindBooking:       {table: "bookings", statusColumn: "booking_status", paidStatus: "confirmed"},
	ordersdomain.KindTaxiRide:      {table: "taxi_rides", statusColumn: "status", paidStatus: "accepted", stampColumn: "accepted_at"},
	ordersdomain.KindPorterBooking: {table: "porter_bookings", statusColumn: "status", paidStatus: "assigned", stampColumn: "assigned_at"},
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) ordersdomain.Reconciler {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("orders.reconciler"),
	}
}

// MarkPaid moves the linked aggregate to its kind's paid status. The write is
// absolute, so delivering the same capture twice is harmless.
func (s *Service) MarkPaid(ctx context.Context, ref ordersdomain.PaymentRef) (*ordersdomain.OrderSummary, error) {
	b, ok := bindings[ref.Kind]
	if !ok {
		return nil, ordersdomain.ErrUnsupportedKind
	}

	now := time.Now().UTC()
	stmt := fmt.Sprintf(
		`UPDATE %s SET %s = ?, payment_status = ?, payment_id = ?, updated_at = ? WHERE id = ?`,
		b.table, b.statusColumn,
	)
	args := []any{b.paidStatus, ordersdomain.PaymentStatusPaid, ref.GatewayPaymentID, now, ref.LocalOrderID}
	if b.stampColumn != "" {
		stmt = fmt.Sprintf(
			`UPDATE %s SET %s = ?, payment_status = ?, payment_id = ?, %s = COALESCE(%s, ?), updated_at = ? WHERE id = ?`,
			b.table, b.statusColumn, b.stampColumn, b.stampColumn,
		)
		args = []any{b.paidStatus, ordersdomain.PaymentStatusPaid, ref.GatewayPaymentID, now, now, ref.LocalOrderID}
	}

	return s.apply(ctx, ref, b, stmt, args)
}

// MarkFailed cancels the linked aggregate and flags the failed payment.
func (s *Service) MarkFailed(ctx context.Context, ref ordersdomain.PaymentRef) (*ordersdomain.OrderSummary, error) {
	b, ok := bindings[ref.Kind]
	if !ok {
		return nil, ordersdomain.ErrUnsupportedKind
	}

	now := time.Now().UTC()
	stmt := fmt.Sprintf(
		`UPDATE %s SET %s = ?, payment_status = ?, cancelled_at = COALESCE(cancelled_at, ?), updated_at = ? WHERE id = ?`,
		b.table, b.statusColumn,
	)
	args := []any{ordersdomain.StatusCancelled, ordersdomain.PaymentStatusFailed, now, now, ref.LocalOrderID}

	return s.apply(ctx, ref, b, stmt, args)
}

func (s *Service) apply(ctx context.Context, ref ordersdomain.PaymentRef, b binding, stmt string, args []any) (*ordersdomain.OrderSummary, error) {
	res := s.db.WithContext(ctx).Exec(stmt, args...)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Warn("order not found for reconciliation",
			zap.String("kind", string(ref.Kind)),
			zap.String("order_id", ref.LocalOrderID),
		)
		return nil, nil
	}

	return s.load(ctx, ref.Kind, b, ref.LocalOrderID)
}

func (s *Service) load(ctx context.Context, kind ordersdomain.Kind, b binding, id string) (*ordersdomain.OrderSummary, error) {
	var row struct {
		ID            string `gorm:"column:id"`
		Status        string `gorm:"column:status"`
		PaymentStatus string `gorm:"column:payment_status"`
	}
	query := fmt.Sprintf(
		`SELECT id, %s AS status, payment_status FROM %s WHERE id = ? LIMIT 1`,
		b.statusColumn, b.table,
	)
	if err := s.db.WithContext(ctx).Raw(query, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &ordersdomain.OrderSummary{
		ID:            row.ID,
		Kind:          kind,
		Status:        row.Status,
		PaymentStatus: row.PaymentStatus,
	}, nil
}
