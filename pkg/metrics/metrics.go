// Package metrics exposes memoview's Prometheus metrics.
//
// Metrics collected:
//   - memoview_region_renders_total: render function calls by region
//   - memoview_region_skips_total: notifications discarded by region
//   - memoview_store_notifications_total: store notifications
//   - memoview_timer_ticks_total: periodic increments applied
//   - memoview_dispatch_duration_seconds: time spent in loop callbacks
//   - memoview_dispatch_dropped_total: callbacks dropped on a full queue
//   - memoview_patches_sent_total: patches written to clients
//   - memoview_deferred_flushes_total: session re-renders that waited for queue space
//   - memoview_active_sessions: connected WebSocket sessions
//   - memoview_websocket_errors_total: WebSocket errors by type
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the metrics recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "memoview").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: a new registry per Recorder.
	Registry prometheus.Registerer
}

// Option configures the metrics recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "memoview",
		Buckets:   prometheus.DefBuckets,
	}
}

// Recorder holds memoview's collectors. A nil *Recorder is valid and records
// nothing, so callers never need to check.
type Recorder struct {
	registry prometheus.Registerer

	regionRenders    *prometheus.CounterVec
	regionSkips      *prometheus.CounterVec
	notifications    prometheus.Counter
	timerTicks       prometheus.Counter
	dispatchDuration prometheus.Histogram
	dispatchDropped  prometheus.Counter
	patchesSent      prometheus.Counter
	deferredFlushes  prometheus.Counter
	activeSessions   prometheus.Gauge
	wsErrors         *prometheus.CounterVec
}

// New registers memoview's collectors and returns the Recorder.
func New(opts ...Option) *Recorder {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}

	factory := promauto.With(config.Registry)
	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Recorder{
		registry: config.Registry,

		regionRenders: factory.NewCounterVec(
			counterOpts("region_renders_total", "Render function calls by memoized region"),
			[]string{"region"}),

		regionSkips: factory.NewCounterVec(
			counterOpts("region_skips_total", "Notifications discarded because the region slice was unchanged"),
			[]string{"region"}),

		notifications: factory.NewCounter(
			counterOpts("store_notifications_total", "Store notifications broadcast to subscribers")),

		timerTicks: factory.NewCounter(
			counterOpts("timer_ticks_total", "Periodic counter increments applied")),

		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Time spent running one loop callback",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		dispatchDropped: factory.NewCounter(
			counterOpts("dispatch_dropped_total", "Loop callbacks dropped because the queue was full")),

		patchesSent: factory.NewCounter(
			counterOpts("patches_sent_total", "Patches sent to clients")),

		deferredFlushes: factory.NewCounter(
			counterOpts("deferred_flushes_total", "Session re-renders that found the loop queue full and waited for space")),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(
			counterOpts("websocket_errors_total", "WebSocket errors by type"),
			[]string{"type"}),
	}
}

// Gatherer returns the registry as a Gatherer when it is one, for serving
// with promhttp.HandlerFor.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	if g, ok := r.registry.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}

// RegionRendered implements memo.Recorder.
func (r *Recorder) RegionRendered(region string) {
	if r != nil {
		r.regionRenders.WithLabelValues(regionLabel(region)).Inc()
	}
}

// RegionSkipped implements memo.Recorder.
func (r *Recorder) RegionSkipped(region string) {
	if r != nil {
		r.regionSkips.WithLabelValues(regionLabel(region)).Inc()
	}
}

// ObserveDispatch implements loop.Observer.
func (r *Recorder) ObserveDispatch(d time.Duration) {
	if r != nil {
		r.dispatchDuration.Observe(d.Seconds())
	}
}

// ObserveDrop implements loop.Observer.
func (r *Recorder) ObserveDrop() {
	if r != nil {
		r.dispatchDropped.Inc()
	}
}

// RecordNotification records one store notification.
func (r *Recorder) RecordNotification() {
	if r != nil {
		r.notifications.Inc()
	}
}

// RecordTimerTick records one periodic increment.
func (r *Recorder) RecordTimerTick() {
	if r != nil {
		r.timerTicks.Inc()
	}
}

// RecordPatches records the number of patches sent.
func (r *Recorder) RecordPatches(count int) {
	if r != nil && count > 0 {
		r.patchesSent.Add(float64(count))
	}
}

// RecordDeferredFlush records a session re-render that could not be queued
// immediately.
func (r *Recorder) RecordDeferredFlush() {
	if r != nil {
		r.deferredFlushes.Inc()
	}
}

// RecordSessionOpen records a new WebSocket session.
func (r *Recorder) RecordSessionOpen() {
	if r != nil {
		r.activeSessions.Inc()
	}
}

// RecordSessionClose records a closed WebSocket session.
func (r *Recorder) RecordSessionClose() {
	if r != nil {
		r.activeSessions.Dec()
	}
}

// RecordWebSocketError records a WebSocket error by type.
func (r *Recorder) RecordWebSocketError(errorType string) {
	if r != nil {
		r.wsErrors.WithLabelValues(errorType).Inc()
	}
}

// regionLabel keeps unnamed regions from producing an empty label value.
func regionLabel(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}
