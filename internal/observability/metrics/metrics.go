package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics counts payment lifecycle events.
type Metrics struct {
	ordersCreated   prometheus.Counter
	events          *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	stalePending    prometheus.Gauge
	rateLimited     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_orders_created_total",
			Help: "Gateway orders created.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Payment transitions applied, by event.",
		}, []string{"event"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_reconciliations_total",
			Help: "Order aggregate updates driven by payment transitions.",
		}, []string{"kind", "outcome"}),
		stalePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payment_stale_pending",
			Help: "Pending payments older than the sweep threshold.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint.",
		}, []string{"endpoint"}),
	}

	for _, c := range []prometheus.Collector{m.ordersCreated, m.events, m.reconciliations, m.stalePending, m.rateLimited} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) RecordPaymentEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordReconciliation(kind, outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SetStalePending(n int) {
	if m == nil {
		return
	}
	m.stalePending.Set(float64(n))
}

func (m *Metrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// HTTPMetrics observes request durations per route and status.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

func NewHTTP(reg prometheus.Registerer) (*HTTPMetrics, error) {
	h := &HTTPMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if err := reg.Register(h.duration); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	}
	return h, nil
}

func GinMiddleware(h *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.duration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

func provideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

var Module = fx.Module("observability.metrics",
	fx.Provide(provideRegisterer),
	fx.Provide(New),
	fx.Provide(NewHTTP),
)
