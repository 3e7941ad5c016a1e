package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit trail.
type Metrics struct {
	Emitted         *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	MirrorDropped   prometheus.Counter
	MirrorFallback  prometheus.Counter
	MirrorOpen      prometheus.Gauge
}

// NewMetrics registers audit metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phoneintel_audit_records_total",
			Help: "Total audit records persisted by result",
		}, []string{"result"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phoneintel_audit_persist_failures_total",
			Help: "Total audit records the primary store rejected",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "phoneintel_audit_persist_duration_seconds",
			Help:    "Duration of synchronous audit persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		MirrorDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phoneintel_audit_mirror_dropped_total",
			Help: "Total audit records not mirrored because the queue was full or every sink failed",
		}),
		MirrorFallback: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phoneintel_audit_mirror_fallback_total",
			Help: "Total audit records routed to the fallback sink",
		}),
		MirrorOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "phoneintel_audit_mirror_circuit_open",
			Help: "Mirror circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncEmitted(result Outcome) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) ObservePersist(d time.Duration) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(d.Seconds())
}

func (m *Metrics) IncMirrorDropped() {
	if m == nil {
		return
	}
	m.MirrorDropped.Inc()
}

func (m *Metrics) IncMirrorFallback() {
	if m == nil {
		return
	}
	m.MirrorFallback.Inc()
}

func (m *Metrics) SetMirrorOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.MirrorOpen.Set(1)
	} else {
		m.MirrorOpen.Set(0)
	}
}
