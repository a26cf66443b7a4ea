package middleware

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Prometheus counters and latency histograms per update kind, plus a few
// process-local totals for the health endpoint.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// Registerer receives the collectors. prometheus.DefaultRegisterer when nil.
	Registerer prometheus.Registerer

	// Buckets are the latency histogram buckets in seconds.
	Buckets []float64

	// SlowRequestThreshold triggers OnSlowRequest.
	SlowRequestThreshold time.Duration

	// OnSlowRequest is called when handling an update took too long.
	OnSlowRequest func(kind string, telegramID int64, d time.Duration)
}

// DefaultMetricsConfig returns sensible defaults for metrics middleware.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Buckets:              []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		SlowRequestThreshold: 3 * time.Second,
	}
}

// MetricsMiddleware records per-update metrics.
type MetricsMiddleware struct {
	config MetricsConfig

	updates     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inflight    prometheus.Gauge
	rateLimited prometheus.Counter
	panics      prometheus.Counter

	total  atomic.Int64
	errors atomic.Int64
}

// NewMetricsMiddleware creates the collectors and registers them.
func NewMetricsMiddleware(config MetricsConfig) (*MetricsMiddleware, error) {
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if len(config.Buckets) == 0 {
		config.Buckets = DefaultMetricsConfig().Buckets
	}

	m := &MetricsMiddleware{
		config: config,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vuntgram_updates_total",
			Help: "Handled Telegram updates by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vuntgram_update_duration_seconds",
			Help:    "Time spent handling one Telegram update.",
			Buckets: config.Buckets,
		}, []string{"kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vuntgram_updates_in_flight",
			Help: "Updates being handled right now.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vuntgram_rate_limited_total",
			Help: "Updates dropped by the rate limiter.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vuntgram_panics_total",
			Help: "Recovered panics in update handling.",
		}),
	}

	for _, c := range []prometheus.Collector{m.updates, m.duration, m.inflight, m.rateLimited, m.panics} {
		if err := config.Registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RequestContext tracks one update.
type RequestContext struct {
	kind       string
	telegramID int64
	start      time.Time
	m          *MetricsMiddleware
}

// Start begins tracking an update of the given kind (message, callback, command).
func (m *MetricsMiddleware) Start(kind string, telegramID int64) *RequestContext {
	m.inflight.Inc()
	m.total.Add(1)
	return &RequestContext{kind: kind, telegramID: telegramID, start: time.Now(), m: m}
}

// End records the outcome. err is the engine's taxonomy error or a transport error.
func (rc *RequestContext) End(err error) {
	m := rc.m
	d := time.Since(rc.start)

	m.inflight.Dec()
	m.updates.WithLabelValues(rc.kind, shared.Kind(err)).Inc()
	m.duration.WithLabelValues(rc.kind).Observe(d.Seconds())

	if err != nil && !shared.IsRecoverable(err) {
		m.errors.Add(1)
	}
	if m.config.OnSlowRequest != nil && m.config.SlowRequestThreshold > 0 && d > m.config.SlowRequestThreshold {
		m.config.OnSlowRequest(rc.kind, rc.telegramID, d)
	}
}

// RecordRateLimited counts an update dropped by the rate limiter.
func (m *MetricsMiddleware) RecordRateLimited() { m.rateLimited.Inc() }

// RecordPanic counts a recovered panic.
func (m *MetricsMiddleware) RecordPanic() { m.panics.Inc() }

// Totals returns the handled update count and the internal error count.
func (m *MetricsMiddleware) Totals() (updates, errors int64) {
	return m.total.Load(), m.errors.Load()
}
