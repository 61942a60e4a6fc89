package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	"github.com/omnikart/omnikart/internal/payment/domain"
	pkgdb "github.com/omnikart/omnikart/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *domain.PaymentRecord) error {
	if rec.GatewayOrderID == "" || rec.LocalOrderID == "" || rec.OrderKind == "" {
		return domain.ErrInvalidOrderID
	}
	if rec.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if rec.Currency == "" {
		return domain.ErrInvalidCurrency
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = domain.StatusPending
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByGatewayOrderID(ctx context.Context, db *gorm.DB, gatewayOrderID string) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, db, "gateway_order_id = ?", gatewayOrderID)
}

func (r *repo) FindByGatewayPaymentID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, db, "gateway_payment_id = ?", gatewayPaymentID)
}

func (r *repo) FindByLocalOrder(ctx context.Context, db *gorm.DB, localOrderID string, kind ordersdomain.Kind) (*domain.PaymentRecord, error) {
	return r.findOne(ctx, db, "local_order_id = ? AND order_kind = ?", localOrderID, kind)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, args ...any) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM payments WHERE `+cond+` LIMIT 1`, args...).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, params domain.ListParams) ([]*domain.PaymentRecord, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if params.Status != "" {
		where = append(where, "status = ?")
		args = append(args, params.Status)
	}
	if params.LocalOrderID != "" {
		where = append(where, "local_order_id = ?")
		args = append(args, params.LocalOrderID)
	}
	if params.OrderKind != "" {
		where = append(where, "order_kind = ?")
		args = append(args, params.OrderKind)
	}
	if params.AfterID > 0 {
		where = append(where, "id < ?")
		args = append(args, params.AfterID)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	var items []*domain.PaymentRecord
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM payments WHERE `+strings.Join(where, " AND ")+` ORDER BY id DESC LIMIT ?`, args...).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CaptureByOrderID moves a pending row to captured in one conditional UPDATE.
// The status guard makes a concurrent verify/webhook pair resolve to exactly
// one applied transition; the loser observes CaptureAlreadyDone.
func (r *repo) CaptureByOrderID(ctx context.Context, db *gorm.DB, params domain.CaptureParams) (*domain.PaymentRecord, domain.CaptureOutcome, error) {
	set := []string{"status = ?", "gateway_payment_id = ?", "updated_at = ?"}
	args := []any{domain.StatusCaptured, params.GatewayPaymentID, time.Now().UTC()}
	if params.Signature != "" {
		set = append(set, "gateway_signature = ?")
		args = append(args, params.Signature)
	}
	if params.Method != "" {
		set = append(set, "method = ?")
		args = append(args, params.Method)
	}
	if len(params.Payload) > 0 {
		set = append(set, "webhook_payload = ?")
		args = append(args, params.Payload)
	}
	args = append(args, params.GatewayOrderID, domain.StatusPending)

	res := db.WithContext(ctx).Exec(
		`UPDATE payments SET `+strings.Join(set, ", ")+` WHERE gateway_order_id = ? AND status = ?`,
		args...,
	)
	if res.Error != nil {
		return nil, domain.CaptureNoMatch, res.Error
	}

	rec, err := r.FindByGatewayOrderID(ctx, db, params.GatewayOrderID)
	if err != nil {
		return nil, domain.CaptureNoMatch, err
	}
	if rec == nil {
		return nil, domain.CaptureNoMatch, nil
	}
	if res.RowsAffected == 0 {
		return rec, domain.CaptureAlreadyDone, nil
	}
	return rec, domain.CaptureApplied, nil
}

// FailByOrderID moves a pending row to failed. Terminal rows are left alone.
func (r *repo) FailByOrderID(ctx context.Context, db *gorm.DB, params domain.FailParams) (*domain.PaymentRecord, domain.CaptureOutcome, error) {
	set := []string{"status = ?", "updated_at = ?"}
	args := []any{domain.StatusFailed, time.Now().UTC()}
	if params.GatewayPaymentID != "" {
		set = append(set, "gateway_payment_id = ?")
		args = append(args, params.GatewayPaymentID)
	}
	if params.ErrorCode != "" {
		set = append(set, "error_code = ?")
		args = append(args, params.ErrorCode)
	}
	if params.ErrorDescription != "" {
		set = append(set, "error_description = ?")
		args = append(args, params.ErrorDescription)
	}
	if len(params.Payload) > 0 {
		set = append(set, "webhook_payload = ?")
		args = append(args, params.Payload)
	}
	args = append(args, params.GatewayOrderID, domain.StatusPending)

	res := db.WithContext(ctx).Exec(
		`UPDATE payments SET `+strings.Join(set, ", ")+` WHERE gateway_order_id = ? AND status = ?`,
		args...,
	)
	if res.Error != nil {
		return nil, domain.CaptureNoMatch, res.Error
	}

	rec, err := r.FindByGatewayOrderID(ctx, db, params.GatewayOrderID)
	if err != nil {
		return nil, domain.CaptureNoMatch, err
	}
	if rec == nil {
		return nil, domain.CaptureNoMatch, nil
	}
	if res.RowsAffected == 0 {
		return rec, domain.CaptureAlreadyDone, nil
	}
	return rec, domain.CaptureApplied, nil
}

// MarkRefunded transitions captured → refunded/partially_refunded. The bool
// reports whether this call applied the transition.
func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, params domain.RefundParams) (*domain.PaymentRecord, bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, refund_id = ?, refund_amount = ?, refund_status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		params.Status,
		params.RefundID,
		params.RefundAmount,
		params.RefundStatus,
		time.Now().UTC(),
		params.ID,
		domain.StatusCaptured,
	)
	if res.Error != nil {
		return nil, false, res.Error
	}

	rec, err := r.FindByID(ctx, db, params.ID)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec, res.RowsAffected > 0, nil
}
