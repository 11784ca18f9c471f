package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-drift/rendercore/pkg/config"
)

// Metrics collects Prometheus metrics for mount passes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	mounts         *prometheus.CounterVec
	unmounts       *prometheus.CounterVec
	updates        *prometheus.CounterVec
	moves          prometheus.Counter
	passDuration   *prometheus.HistogramVec
	mountedItems   prometheus.Gauge
	poolAcquires   *prometheus.CounterVec
	poolDrops      *prometheus.CounterVec
	desyncs        prometheus.Counter
	incrementalOps *prometheus.CounterVec
}

// NewMetrics creates metrics registered on a private registry.
// It returns nil when metrics are disabled.
func NewMetrics(cfg config.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "items_mounted_total",
			Help:      "Render units mounted, by content type.",
		}, []string{"content_type"}),
		unmounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "items_unmounted_total",
			Help:      "Render units unmounted, by content type.",
		}, []string{"content_type"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "items_updated_total",
			Help:      "Mounted render units updated in place, by content type.",
		}, []string{"content_type"}),
		moves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "items_moved_total",
			Help:      "Mount items repositioned within their host.",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "pass_duration_seconds",
			Help:      "Duration of mount engine passes.",
			Buckets:   []float64{.0001, .0005, .001, .002, .004, .008, .016, .033, .1},
		}, []string{"pass"}),
		mountedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "mounted_items",
			Help:      "Mount items currently alive.",
		}),
		poolAcquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "pool_acquires_total",
			Help:      "Content acquisitions, by content type and result (hit, miss).",
		}, []string{"content_type", "result"}),
		poolDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "pool_releases_dropped_total",
			Help:      "Content releases not kept by the pool, by reason.",
		}, []string{"content_type", "reason"}),
		desyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "desync_recoveries_total",
			Help:      "Mount item map rebuilds after a detected desync.",
		}),
		incrementalOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "incremental_mount_transitions_total",
			Help:      "Reference transitions made by incremental mount, by direction.",
		}, []string{"direction"}),
	}
	m.registry.MustRegister(
		m.mounts, m.unmounts, m.updates, m.moves, m.passDuration, m.mountedItems,
		m.poolAcquires, m.poolDrops, m.desyncs, m.incrementalOps,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ItemMounted records a mount of the given content type.
func (m *Metrics) ItemMounted(contentType string) {
	if m == nil {
		return
	}
	m.mounts.WithLabelValues(contentType).Inc()
	m.mountedItems.Inc()
}

// ItemUnmounted records an unmount of the given content type.
func (m *Metrics) ItemUnmounted(contentType string) {
	if m == nil {
		return
	}
	m.unmounts.WithLabelValues(contentType).Inc()
	m.mountedItems.Dec()
}

// ItemUpdated records an in-place update.
func (m *Metrics) ItemUpdated(contentType string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(contentType).Inc()
}

// ItemMoved records a reposition within a host.
func (m *Metrics) ItemMoved() {
	if m == nil {
		return
	}
	m.moves.Inc()
}

// ObservePass records the duration of a named pass.
func (m *Metrics) ObservePass(pass string, d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// PoolAcquire records a pool lookup.
func (m *Metrics) PoolAcquire(contentType string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.poolAcquires.WithLabelValues(contentType, result).Inc()
}

// PoolDrop records a release the pool did not keep.
func (m *Metrics) PoolDrop(contentType, reason string) {
	if m == nil {
		return
	}
	m.poolDrops.WithLabelValues(contentType, reason).Inc()
}

// DesyncRecovered records a mount item map rebuild.
func (m *Metrics) DesyncRecovered() {
	if m == nil {
		return
	}
	m.desyncs.Inc()
}

// IncrementalTransitions records references acquired and released by one
// incremental mount walk.
func (m *Metrics) IncrementalTransitions(acquired, released int) {
	if m == nil {
		return
	}
	m.incrementalOps.WithLabelValues("acquire").Add(float64(acquired))
	m.incrementalOps.WithLabelValues("release").Add(float64(released))
}
