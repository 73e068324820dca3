// Package metrics implements the Prometheus collectors required by
// spec.md §4.H, wired as the storage.LatencyRecorder and
// storage.OnTransition implementations so instrumentation stays inside
// the storage and store packages rather than leaking Prometheus types
// into their call sites.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/echocog/spiralmem/internal/storage"
)

// Metrics holds every series spec.md §4.H requires.
type Metrics struct {
	Registry *prometheus.Registry

	MemoryTotal     *prometheus.GaugeVec
	ActiveSpirals   prometheus.Gauge
	MemoryCoherence prometheus.Gauge
	SpiralStability prometheus.Gauge
	GCBacklog       prometheus.Gauge
	GCBudgetMS      prometheus.Gauge

	StoreLatencyMS        prometheus.Histogram
	RetrieveLatencyMS     prometheus.Histogram
	GCPauseMS             prometheus.Histogram
	StorageLatencyMS      *prometheus.HistogramVec
	EntanglementLatencyMS prometheus.Histogram

	StoreAllowedTotal       prometheus.Counter
	StoreDeniedTotal        prometheus.Counter
	GCTotal                 prometheus.Counter
	GCForcedCollectTotal    prometheus.Counter
	SigilCollisionTotal     prometheus.Counter
	RebuildCorrectedTotal   prometheus.Counter
	CircuitBreakerOpenTotal *prometheus.CounterVec
}

// New constructs a Metrics bound to a fresh registry (spec.md §9's
// "global mutable shared Prometheus registry" is deliberately replaced
// by an injected value owned by one Metrics instance per process).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		MemoryTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memory_total", Help: "Number of stored memory nodes by depth tier.",
		}, []string{"tier"}),
		ActiveSpirals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_spirals", Help: "Number of spirals currently holding at least one node.",
		}),
		MemoryCoherence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_coherence", Help: "Aggregate coherence score across all spirals.",
		}),
		SpiralStability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spiral_stability", Help: "Aggregate stability score across all spirals.",
		}),
		GCBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gc_backlog", Help: "Number of entries currently queued in the GC heap.",
		}),
		GCBudgetMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gc_budget_ms", Help: "Time budget, in milliseconds, allotted to the most recent GC tick.",
		}),

		StoreLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "store_latency_ms", Help: "store_memory latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		RetrieveLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "retrieve_latency_ms", Help: "retrieve_memory latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		GCPauseMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "gc_pause_ms", Help: "Elapsed time of a GC tick in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		StorageLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "storage_latency_ms", Help: "Storage adapter operation latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"method", "backend"}),
		EntanglementLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "entanglement_latency_ms", Help: "Association symmetry update latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),

		StoreAllowedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_allowed_total", Help: "store_memory calls that were admitted.",
		}),
		StoreDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_denied_total", Help: "store_memory calls rejected (capacity or backend failure).",
		}),
		GCTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gc_total", Help: "GC ticks run.",
		}),
		GCForcedCollectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gc_forced_collect_total", Help: "Nodes evicted via forced collection.",
		}),
		SigilCollisionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigil_collision_total", Help: "Sigil signature collisions observed.",
		}),
		RebuildCorrectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebuild_corrected_total", Help: "Spirals corrected by the stats rebuilder.",
		}),
		CircuitBreakerOpenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuit_breaker_open_total", Help: "Circuit breaker open transitions by backend.",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		m.MemoryTotal, m.ActiveSpirals, m.MemoryCoherence, m.SpiralStability, m.GCBacklog, m.GCBudgetMS,
		m.StoreLatencyMS, m.RetrieveLatencyMS, m.GCPauseMS, m.StorageLatencyMS, m.EntanglementLatencyMS,
		m.StoreAllowedTotal, m.StoreDeniedTotal, m.GCTotal, m.GCForcedCollectTotal,
		m.SigilCollisionTotal, m.RebuildCorrectedTotal, m.CircuitBreakerOpenTotal,
	)

	return m
}

// BackendRecorder adapts Metrics into a storage.LatencyRecorder scoped
// to one named backend, satisfying the record_latency(operation, ms)
// hook of spec.md §4.A.
type BackendRecorder struct {
	metrics *Metrics
	backend string
}

// NewBackendRecorder builds a recorder for backend, to be passed to
// storage.NewInstrumented.
func (m *Metrics) NewBackendRecorder(backend string) *BackendRecorder {
	return &BackendRecorder{metrics: m, backend: backend}
}

func (r *BackendRecorder) RecordLatency(operation string, ms float64) {
	r.metrics.StorageLatencyMS.WithLabelValues(operation, r.backend).Observe(ms)
}

var _ storage.LatencyRecorder = (*BackendRecorder)(nil)

// OnBreakerTransition increments circuit_breaker_open_total whenever a
// breaker transitions into the open state — pass this as the
// storage.OnTransition callback.
func (m *Metrics) OnBreakerTransition(backend string, from, to storage.BreakerState) {
	if to == storage.StateOpen {
		m.CircuitBreakerOpenTotal.WithLabelValues(backend).Inc()
	}
}
