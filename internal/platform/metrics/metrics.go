package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lookup-level Prometheus metrics. Module-specific metrics
// live next to their modules.
type Metrics struct {
	LookupsTotal   *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	RiskScores     prometheus.Histogram
	OwnerLookups   *prometheus.CounterVec
	OverridesFired *prometheus.CounterVec
}

// New creates and registers all lookup metrics.
func New() *Metrics {
	return &Metrics{
		LookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phoneintel_lookups_total",
			Help: "Total number of lookups by outcome",
		}, []string{"outcome"}), // outcome: "ok", "invalid", "canceled", "error"

		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "phoneintel_lookup_duration_seconds",
			Help:    "End-to-end lookup duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		RiskScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "phoneintel_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		OwnerLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phoneintel_owner_lookups_total",
			Help: "Owner intelligence builds by ownership type and whether PII was allowed",
		}, []string{"ownership_type", "pii_allowed"}),

		OverridesFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phoneintel_signal_overrides_total",
			Help: "Operator signal overrides applied, by signal",
		}, []string{"signal"}),
	}
}

// ObserveLookup records one finished lookup.
func (m *Metrics) ObserveLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(d.Seconds())
}

// ObserveScore records a computed risk score.
func (m *Metrics) ObserveScore(score int) {
	if m == nil {
		return
	}
	m.RiskScores.Observe(float64(score))
}

// IncrementOwnerLookup counts an owner intelligence build.
func (m *Metrics) IncrementOwnerLookup(ownershipType string, piiAllowed bool) {
	if m == nil {
		return
	}
	allowed := "false"
	if piiAllowed {
		allowed = "true"
	}
	m.OwnerLookups.WithLabelValues(ownershipType, allowed).Inc()
}

// IncrementOverride counts a fired signal override.
func (m *Metrics) IncrementOverride(signal string) {
	if m == nil {
		return
	}
	m.OverridesFired.WithLabelValues(signal).Inc()
}
