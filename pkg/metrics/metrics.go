// Copyright 2025 Covenant Protocol
//
// Prometheus metrics for kernel operations
// Collectors live on a caller-supplied registry so importing the kernel
// never mutates global metric state.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the kernel's Prometheus collectors
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
	CheckFailures      *prometheus.CounterVec
	BreachesTotal      *prometheus.CounterVec
	PropagationDepth   prometheus.Histogram
	StoreOpsTotal      *prometheus.CounterVec
}

// New creates the kernel collectors and registers them on the registry.
// A nil registry returns unregistered collectors, which is convenient for
// tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covenant",
			Subsystem: "kernel",
			Name:      "evaluations_total",
			Help:      "Access evaluations by decision",
		}, []string{"decision"}),
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covenant",
			Subsystem: "kernel",
			Name:      "verifications_total",
			Help:      "Covenant verifications by outcome",
		}, []string{"outcome"}),
		CheckFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covenant",
			Subsystem: "kernel",
			Name:      "verification_check_failures_total",
			Help:      "Failed verification checks by check name",
		}, []string{"check"}),
		BreachesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covenant",
			Subsystem: "trust",
			Name:      "breaches_total",
			Help:      "Processed breach attestations by severity",
		}, []string{"severity"}),
		PropagationDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covenant",
			Subsystem: "trust",
			Name:      "propagation_depth",
			Help:      "Depth reached by breach propagation",
			Buckets:   prometheus.LinearBuckets(0, 1, 8),
		}),
		StoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covenant",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Covenant store operations by kind",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EvaluationsTotal,
			m.VerificationsTotal,
			m.CheckFailures,
			m.BreachesTotal,
			m.PropagationDepth,
			m.StoreOpsTotal,
		)
	}
	return m
}

// ObserveEvaluation records an access decision
func (m *Metrics) ObserveEvaluation(permitted bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if permitted {
		decision = "permit"
	}
	m.EvaluationsTotal.WithLabelValues(decision).Inc()
}

// ObserveBreach records a processed breach and its propagation depth
func (m *Metrics) ObserveBreach(severity string, depth int) {
	if m == nil {
		return
	}
	m.BreachesTotal.WithLabelValues(severity).Inc()
	m.PropagationDepth.Observe(float64(depth))
}
