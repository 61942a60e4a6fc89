// Package sweeper periodically flags payments stuck in pending. A payment
// stays pending when the customer abandons checkout or when both the verify
// callback and the capture webhook are lost; the sweep surfaces the second
// case so it can be reconciled against the gateway dashboard. It never
// mutates the ledger: a late capture webhook must still find the row pending.
package sweeper

import (
	"context"
	"time"

	"github.com/omnikart/omnikart/internal/clock"
	"github.com/omnikart/omnikart/internal/config"
	obsmetrics "github.com/omnikart/omnikart/internal/observability/metrics"
	"github.com/omnikart/omnikart/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics   `optional:"true"`
	Limiter *ratelimit.APILimiter `optional:"true"`
}

type Sweeper struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.SweeperConfig
	clock   clock.Clock
	metrics *obsmetrics.Metrics
	limiter *ratelimit.APILimiter
}

func New(p Params) *Sweeper {
	cfg := p.Cfg.Sweeper
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.PendingAfter <= 0 {
		cfg.PendingAfter = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		db:      p.DB,
		log:     p.Log.Named("payments.sweeper"),
		cfg:     cfg,
		clock:   p.Clock,
		metrics: p.Metrics,
		limiter: p.Limiter,
	}
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		release, ok := s.limiter.AcquireSweep(ctx)
		if !ok {
			// Another replica holds the sweep lock.
			continue
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep failed", zap.Error(err))
		}
		release()
	}
}

type stalePayment struct {
	ID             int64     `gorm:"column:id"`
	GatewayOrderID string    `gorm:"column:gateway_order_id"`
	LocalOrderID   string    `gorm:"column:local_order_id"`
	OrderKind      string    `gorm:"column:order_kind"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// RunOnce reports pending payments older than the configured threshold and
// returns how many it found.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.PendingAfter)

	var stale []stalePayment
	err := s.db.WithContext(ctx).
		Raw(`SELECT id, gateway_order_id, local_order_id, order_kind, created_at
		     FROM payments
		     WHERE status = 'pending' AND created_at < ?
		     ORDER BY created_at
		     LIMIT ?`, cutoff, s.cfg.BatchSize).
		Scan(&stale).Error
	if err != nil {
		return 0, err
	}

	for _, p := range stale {
		s.log.Warn("payment stuck in pending",
			zap.Int64("payment_record_id", p.ID),
			zap.String("gateway_order_id", p.GatewayOrderID),
			zap.String("order_id", p.LocalOrderID),
			zap.String("order_model", p.OrderKind),
			zap.Duration("age", s.clock.Now().Sub(p.CreatedAt)),
		)
	}
	s.metrics.SetStalePending(len(stale))

	return len(stale), nil
}
