package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for evidence gathering and its cache.
type Metrics struct {
	// Adapter call latencies by adapter and outcome
	AdapterLatency *prometheus.HistogramVec

	// Adapter failures by adapter and error category
	AdapterErrors *prometheus.CounterVec

	// Cache lookups by adapter and result (hit, miss, corrupt, error)
	CacheLookups *prometheus.CounterVec

	// Entries removed by the expiry sweeper
	CacheSwept prometheus.Counter

	// Whole fan-out latency
	RunLatency prometheus.Histogram
}

// New creates a new Metrics instance with all evidence metrics registered.
func New() *Metrics {
	return &Metrics{
		AdapterLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phoneintel_evidence_adapter_duration_seconds",
			Help:    "Duration of evidence adapter calls by adapter and outcome",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"adapter", "outcome"}), // outcome: "ok", "error", "canceled"

		AdapterErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phoneintel_evidence_adapter_errors_total",
			Help: "Total evidence adapter failures by adapter and category",
		}, []string{"adapter", "category"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phoneintel_evidence_cache_lookups_total",
			Help: "Total evidence cache lookups by adapter and result",
		}, []string{"adapter", "result"}),

		CacheSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phoneintel_evidence_cache_swept_total",
			Help: "Total expired cache entries removed by the sweeper",
		}),

		RunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "phoneintel_evidence_run_duration_seconds",
			Help:    "Duration of a full evidence fan-out across all adapters",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveAdapter records the duration and outcome of one adapter call.
func (m *Metrics) ObserveAdapter(adapter, outcome string, d time.Duration) {
	if m != nil {
		m.AdapterLatency.WithLabelValues(adapter, outcome).Observe(d.Seconds())
	}
}

// IncrementAdapterError records an adapter failure.
func (m *Metrics) IncrementAdapterError(adapter, category string) {
	if m != nil {
		m.AdapterErrors.WithLabelValues(adapter, category).Inc()
	}
}

// RecordCacheLookup records a cache lookup result.
func (m *Metrics) RecordCacheLookup(adapter, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(adapter, result).Inc()
	}
}

// AddSwept records entries removed by an expiry sweep.
func (m *Metrics) AddSwept(n int) {
	if m != nil && n > 0 {
		m.CacheSwept.Add(float64(n))
	}
}

// ObserveRun records the duration of a full fan-out.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}
