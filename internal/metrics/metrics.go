// Package metrics exposes the orchestrator's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk_orchestrator",
		Name:      "turns_total",
		Help:      "Turn outcomes by result status.",
	}, []string{"status"})

	RoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk_orchestrator",
		Name:      "rounds_total",
		Help:      "Round outcomes.",
	}, []string{"outcome"})

	DispatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "risk_orchestrator",
		Name:      "dispatch_duration_seconds",
		Help:      "Wall time of player turn dispatches, including timeouts.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
