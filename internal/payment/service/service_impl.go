package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/omnikart/omnikart/internal/cache"
	"github.com/omnikart/omnikart/internal/config"
	"github.com/omnikart/omnikart/internal/gateway"
	obsmetrics "github.com/omnikart/omnikart/internal/observability/metrics"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	paymentdomain "github.com/omnikart/omnikart/internal/payment/domain"
	"github.com/omnikart/omnikart/internal/payment/signature"
	"github.com/omnikart/omnikart/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Limits     *config.LimitsHolder
	Repo       paymentdomain.Repository
	Reconciler ordersdomain.Reconciler
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Dedup      cache.WebhookDedup  `optional:"true"`
	// GatewayClient, when provided, is used as-is instead of being built
	// from credentials. Test and embedding seam.
	GatewayClient *gateway.Client `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	limits     *config.LimitsHolder
	repo       paymentdomain.Repository
	reconciler ordersdomain.Reconciler
	metrics    *obsmetrics.Metrics
	dedup      cache.WebhookDedup

	mu         sync.Mutex
	gatewayCfg config.GatewayConfig
	client     *gateway.Client
}

func NewService(p Params) paymentdomain.Service {
	s := &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		limits:     p.Limits,
		repo:       p.Repo,
		reconciler: p.Reconciler,
		metrics:    p.Metrics,
		dedup:      p.Dedup,
		gatewayCfg: p.Cfg.Gateway,
	}

	if p.GatewayClient != nil {
		s.client = p.GatewayClient
	} else if p.Cfg.Gateway.Configured() {
		client, err := gateway.NewClient(p.Cfg.Gateway, p.Limits, p.Log)
		if err == nil {
			s.client = client
		}
	} else {
		s.log.Warn("payment gateway credentials missing; order creation disabled until reconfigured")
	}
	if p.Cfg.Gateway.WebhookSecret == "" {
		s.log.Warn("webhook secret not configured; webhook events will be accepted UNAUTHENTICATED")
	}

	return s
}

// Reconfigure rebuilds the gateway client from fresh credentials. Explicit
// so initialization order stays deterministic and testable.
func (s *Service) Reconfigure(cfg config.GatewayConfig) error {
	client, err := gateway.NewClient(cfg, s.limits, s.log)
	if err != nil {
		return paymentdomain.ErrGatewayUnavailable
	}

	s.mu.Lock()
	s.gatewayCfg = cfg
	s.client = client
	s.mu.Unlock()

	s.log.Info("payment gateway reconfigured")
	return nil
}

func (s *Service) gatewayClient() (*gateway.Client, config.GatewayConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client, s.gatewayCfg
}

func (s *Service) gatewayClientOrInit() (*gateway.Client, config.GatewayConfig, error) {
	client, cfg := s.gatewayClient()
	if client != nil {
		return client, cfg, nil
	}
	// One reconfiguration attempt from current credentials before failing.
	if err := s.Reconfigure(cfg); err != nil {
		return nil, cfg, paymentdomain.ErrGatewayUnavailable
	}
	client, cfg = s.gatewayClient()
	if client == nil {
		return nil, cfg, paymentdomain.ErrGatewayUnavailable
	}
	return client, cfg, nil
}

func (s *Service) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (*paymentdomain.CreateOrderResponse, error) {
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return nil, paymentdomain.ErrInvalidOrderID
	}
	kind, err := ordersdomain.ParseKind(req.OrderModel)
	if err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, paymentdomain.ErrInvalidEmail
	}
	req.Contact = strings.TrimSpace(req.Contact)
	if req.Contact == "" {
		return nil, paymentdomain.ErrInvalidContact
	}

	client, gwCfg, err := s.gatewayClientOrInit()
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = gwCfg.Currency
	}
	amountMinor := paymentdomain.ToMinorUnits(req.Amount)

	receipt := uuid.NewString()
	notes := map[string]interface{}{
		"order_id":    req.OrderID,
		"order_model": string(kind),
	}
	if req.Description != "" {
		notes["description"] = req.Description
	}

	remote, err := client.CreateRemoteOrder(ctx, amountMinor, currency, receipt, notes)
	if err != nil {
		return nil, err
	}

	rec := &paymentdomain.PaymentRecord{
		ID:             s.genID.Generate(),
		GatewayOrderID: remote.ID,
		LocalOrderID:   req.OrderID,
		OrderKind:      kind,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         paymentdomain.StatusPending,
		UserID:         strings.TrimSpace(req.UserID),
		Email:          req.Email,
		Contact:        req.Contact,
	}
	if err := s.repo.Insert(ctx, s.db, rec); err != nil {
		return nil, err
	}

	s.metrics.RecordOrderCreated()
	s.log.Info("gateway order created",
		zap.String("gateway_order_id", remote.ID),
		zap.String("order_id", req.OrderID),
		zap.String("order_model", string(kind)),
		zap.Int64("amount_minor", amountMinor),
	)

	return &paymentdomain.CreateOrderResponse{
		GatewayOrder: paymentdomain.GatewayOrder{
			ID:       remote.ID,
			Amount:   remote.Amount,
			Currency: remote.Currency,
			KeyID:    gwCfg.KeyID,
		},
		Payment: rec,
	}, nil
}

func (s *Service) VerifyPayment(ctx context.Context, req paymentdomain.VerifyRequest) (*paymentdomain.VerifyResponse, error) {
	req.GatewayOrderID = strings.TrimSpace(req.GatewayOrderID)
	req.GatewayPaymentID = strings.TrimSpace(req.GatewayPaymentID)
	req.GatewaySignature = strings.TrimSpace(req.GatewaySignature)

	_, gwCfg := s.gatewayClient()
	if !signature.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature, gwCfg.KeySecret) {
		return nil, paymentdomain.ErrInvalidSignature
	}

	rec, outcome, err := s.repo.CaptureByOrderID(ctx, s.db, paymentdomain.CaptureParams{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.GatewaySignature,
	})
	if err != nil {
		return nil, err
	}
	if outcome == paymentdomain.CaptureNoMatch {
		return nil, paymentdomain.ErrNotFound
	}
	if outcome == paymentdomain.CaptureApplied {
		s.metrics.RecordPaymentEvent("verify.captured")
	}

	order := s.reconcilePaid(ctx, rec)
	return &paymentdomain.VerifyResponse{Payment: rec, Order: order}, nil
}

func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	_, gwCfg := s.gatewayClient()
	if gwCfg.WebhookSecret == "" {
		s.log.Warn("accepting webhook without signature verification; no webhook secret configured")
	} else if !signature.VerifyWebhookSignature(body, strings.TrimSpace(signatureHeader), gwCfg.WebhookSecret) {
		return paymentdomain.ErrInvalidSignature
	}

	// Redelivered bodies are acknowledged without touching the ledger. The
	// conditional updates below stay correct without this; it only sheds load.
	if s.dedup != nil && s.dedup.Seen(body) {
		s.log.Debug("duplicate webhook body acknowledged")
		return nil
	}

	if err := s.dispatchWebhook(ctx, body); err != nil {
		return err
	}
	// Marked only after the handlers succeed; a delivery that failed on a
	// transient error must not be swallowed when the provider retries it.
	if s.dedup != nil {
		s.dedup.Mark(body)
	}
	return nil
}

func (s *Service) dispatchWebhook(ctx context.Context, body []byte) error {
	var event paymentdomain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Redelivering a malformed body cannot improve it; acknowledge.
		s.log.Warn("acknowledging malformed webhook body", zap.Error(err))
		return nil
	}

	switch event.Event {
	case paymentdomain.EventPaymentCaptured:
		return s.webhookCaptured(ctx, event, body)
	case paymentdomain.EventPaymentFailed:
		return s.webhookFailed(ctx, event, body)
	case paymentdomain.EventRefundProcessed:
		return s.webhookRefunded(ctx, event)
	default:
		// The provider retries on non-2xx; unknown events are acknowledged.
		s.log.Debug("ignoring webhook event", zap.String("event", event.Event))
		return nil
	}
}

func (s *Service) webhookCaptured(ctx context.Context, event paymentdomain.WebhookEvent, body []byte) error {
	if event.Payload.Payment == nil {
		s.log.Warn("acknowledging webhook without a payment entity", zap.String("event", event.Event))
		return nil
	}
	entity := event.Payload.Payment.Entity

	rec, outcome, err := s.repo.CaptureByOrderID(ctx, s.db, paymentdomain.CaptureParams{
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
		Method:           entity.Method,
		Payload:          body,
	})
	if err != nil {
		return err
	}
	switch outcome {
	case paymentdomain.CaptureNoMatch:
		// Legitimate for abandoned-then-retried flows; nothing to reconcile.
		s.log.Info("capture webhook for unknown gateway order",
			zap.String("gateway_order_id", entity.OrderID),
		)
		return nil
	case paymentdomain.CaptureAlreadyDone:
		if rec.GatewayPaymentID != entity.ID {
			s.log.Warn("capture webhook lost first-writer race with a different payment id",
				zap.String("gateway_order_id", entity.OrderID),
				zap.String("stored_payment_id", rec.GatewayPaymentID),
				zap.String("webhook_payment_id", entity.ID),
			)
		}
	case paymentdomain.CaptureApplied:
		s.metrics.RecordPaymentEvent(paymentdomain.EventPaymentCaptured)
	}

	s.reconcilePaid(ctx, rec)
	return nil
}

func (s *Service) webhookFailed(ctx context.Context, event paymentdomain.WebhookEvent, body []byte) error {
	if event.Payload.Payment == nil {
		s.log.Warn("acknowledging webhook without a payment entity", zap.String("event", event.Event))
		return nil
	}
	entity := event.Payload.Payment.Entity

	rec, outcome, err := s.repo.FailByOrderID(ctx, s.db, paymentdomain.FailParams{
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
		ErrorCode:        entity.ErrorCode,
		ErrorDescription: entity.ErrorDescription,
		Payload:          body,
	})
	if err != nil {
		return err
	}
	switch outcome {
	case paymentdomain.CaptureNoMatch:
		s.log.Info("failure webhook for unknown gateway order",
			zap.String("gateway_order_id", entity.OrderID),
		)
		return nil
	case paymentdomain.CaptureAlreadyDone:
		// Capture beat the failure notification; payment truth stands.
		if rec.Status != paymentdomain.StatusFailed {
			s.log.Warn("failure webhook arrived after a terminal transition",
				zap.String("gateway_order_id", entity.OrderID),
				zap.String("status", string(rec.Status)),
			)
			return nil
		}
	case paymentdomain.CaptureApplied:
		s.metrics.RecordPaymentEvent(paymentdomain.EventPaymentFailed)
	}

	order, err := s.reconciler.MarkFailed(ctx, ordersdomain.PaymentRef{
		LocalOrderID:     rec.LocalOrderID,
		Kind:             rec.OrderKind,
		GatewayPaymentID: rec.GatewayPaymentID,
	})
	if err != nil {
		s.log.Error("order reconciliation failed after payment failure",
			zap.String("order_id", rec.LocalOrderID),
			zap.Error(err),
		)
		return nil
	}
	s.recordReconciliation(rec.OrderKind, "failed", order)
	return nil
}

func (s *Service) webhookRefunded(ctx context.Context, event paymentdomain.WebhookEvent) error {
	if event.Payload.Refund == nil {
		s.log.Warn("acknowledging webhook without a refund entity", zap.String("event", event.Event))
		return nil
	}
	entity := event.Payload.Refund.Entity

	rec, err := s.repo.FindByGatewayPaymentID(ctx, s.db, entity.PaymentID)
	if err != nil {
		return err
	}
	if rec == nil {
		s.log.Info("refund webhook for unknown gateway payment",
			zap.String("gateway_payment_id", entity.PaymentID),
		)
		return nil
	}
	if rec.Status != paymentdomain.StatusCaptured {
		// Already refunded (likely our own refund call) or never captured.
		return nil
	}

	status := paymentdomain.StatusPartiallyRefunded
	if entity.Amount >= rec.AmountMinor() {
		status = paymentdomain.StatusRefunded
	}
	refundStatus := entity.Status
	if refundStatus == "" {
		refundStatus = "processed"
	}

	_, applied, err := s.repo.MarkRefunded(ctx, s.db, paymentdomain.RefundParams{
		ID:           rec.ID,
		RefundID:     entity.ID,
		RefundAmount: paymentdomain.FromMinorUnits(entity.Amount),
		RefundStatus: refundStatus,
		Status:       status,
	})
	if err != nil {
		return err
	}
	if applied {
		s.metrics.RecordPaymentEvent(paymentdomain.EventRefundProcessed)
	}
	return nil
}

func (s *Service) ProcessRefund(ctx context.Context, req paymentdomain.RefundRequest) (*paymentdomain.RefundResponse, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.PaymentID))
	if err != nil {
		return nil, paymentdomain.ErrNotFound
	}

	rec, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, paymentdomain.ErrNotFound
	}
	if rec.Status != paymentdomain.StatusCaptured {
		return nil, paymentdomain.ErrNotCaptured
	}

	amount := req.Amount
	if amount <= 0 {
		amount = rec.Amount
	}
	amountMinor := paymentdomain.ToMinorUnits(amount)
	if amountMinor > rec.AmountMinor() {
		return nil, paymentdomain.ErrRefundExceedsPaid
	}

	client, _, err := s.gatewayClientOrInit()
	if err != nil {
		return nil, err
	}

	remote, err := client.CreateRefund(ctx, rec.GatewayPaymentID, amountMinor, req.Reason)
	if err != nil {
		return nil, err
	}

	status := paymentdomain.StatusPartiallyRefunded
	if amountMinor == rec.AmountMinor() {
		status = paymentdomain.StatusRefunded
	}

	updated, applied, err := s.repo.MarkRefunded(ctx, s.db, paymentdomain.RefundParams{
		ID:           rec.ID,
		RefundID:     remote.ID,
		RefundAmount: amount,
		RefundStatus: "processed",
		Status:       status,
	})
	if err != nil || updated == nil {
		// Money left the gateway but the ledger still says captured. There is
		// no compensating transaction; flag it for manual reconciliation.
		s.log.Error("refund succeeded remotely but ledger update failed",
			zap.String("payment_record_id", rec.ID.String()),
			zap.String("refund_id", remote.ID),
			zap.Error(err),
		)
		if err != nil {
			return nil, err
		}
		return nil, paymentdomain.ErrNotFound
	}
	if !applied {
		s.log.Warn("refund raced with another transition; ledger kept the earlier write",
			zap.String("payment_record_id", rec.ID.String()),
			zap.String("refund_id", remote.ID),
			zap.String("status", string(updated.Status)),
		)
	} else {
		s.metrics.RecordPaymentEvent("refund.requested")
	}

	return &paymentdomain.RefundResponse{
		RefundID: remote.ID,
		Amount:   amount,
		Status:   updated.Status,
	}, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListPayments pages the ledger newest first with opaque cursor tokens.
func (s *Service) ListPayments(ctx context.Context, req paymentdomain.ListRequest) (*paymentdomain.ListResponse, error) {
	params := paymentdomain.ListParams{
		LocalOrderID: strings.TrimSpace(req.OrderID),
	}
	if req.Status != "" {
		status, err := paymentdomain.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		params.Status = status
	}
	if req.OrderModel != "" {
		kind, err := ordersdomain.ParseKind(req.OrderModel)
		if err != nil {
			return nil, err
		}
		params.OrderKind = kind
	}

	size := req.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidToken
		}
		params.AfterID = after
	}

	// One extra row decides has_more without a count query.
	params.Limit = size + 1
	items, err := s.repo.List(ctx, s.db, params)
	if err != nil {
		return nil, err
	}

	resp := &paymentdomain.ListResponse{Payments: items}
	if len(items) > size {
		resp.Payments = items[:size]
		last := resp.Payments[len(resp.Payments)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID.String()})
		if err != nil {
			return nil, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	if resp.Payments == nil {
		resp.Payments = []*paymentdomain.PaymentRecord{}
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, raw string) (*paymentdomain.PaymentRecord, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return nil, paymentdomain.ErrNotFound
	}
	rec, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return rec, nil
}

// reconcilePaid propagates a captured payment into its order aggregate. The
// write is idempotent, so it runs on duplicate deliveries too; a missing
// order is logged and never unwinds the committed payment transition.
func (s *Service) reconcilePaid(ctx context.Context, rec *paymentdomain.PaymentRecord) *ordersdomain.OrderSummary {
	order, err := s.reconciler.MarkPaid(ctx, ordersdomain.PaymentRef{
		LocalOrderID:     rec.LocalOrderID,
		Kind:             rec.OrderKind,
		GatewayPaymentID: rec.GatewayPaymentID,
	})
	if err != nil {
		s.log.Error("order reconciliation failed after capture",
			zap.String("order_id", rec.LocalOrderID),
			zap.String("order_model", string(rec.OrderKind)),
			zap.Error(err),
		)
		return nil
	}
	s.recordReconciliation(rec.OrderKind, "paid", order)
	return order
}

func (s *Service) recordReconciliation(kind ordersdomain.Kind, outcome string, order *ordersdomain.OrderSummary) {
	if order == nil {
		s.metrics.RecordReconciliation(string(kind), "order_missing")
		return
	}
	s.metrics.RecordReconciliation(string(kind), outcome)
}
