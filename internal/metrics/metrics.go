// Package metrics exposes Prometheus collectors for the decision pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts resolved decisions by outcome and maker.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harrier",
		Name:      "decisions_total",
		Help:      "Resolved fraud decisions by outcome and decision maker.",
	}, []string{"decision", "maker"})

	// EscalationsTotal counts reviews that entered the escalation path.
	EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harrier",
		Name:      "escalations_total",
		Help:      "Reviews escalated to the reasoning engine.",
	})

	// ReviewDuration observes end-to-end review latency.
	ReviewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "harrier",
		Name:      "review_duration_seconds",
		Help:      "End-to-end review latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// ModelErrors counts failed calls to the legitimacy-scoring service.
	ModelErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harrier",
		Name:      "model_errors_total",
		Help:      "Failed legitimacy-scoring calls.",
	})
)
