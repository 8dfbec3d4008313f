// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for gate decisions.
var (
	decideDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capgate_decide_duration_seconds",
		Help:    "Histogram of permission gate decision latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capgate_decisions_total",
		Help: "Total number of permission gate decisions",
	}, []string{"capability", "strategy", "outcome"})
)

// recordDecision records metrics for a completed decision. Capabilities the
// group strategy does not know are folded into "other" to bound cardinality.
func recordDecision(d Decision, elapsed time.Duration) {
	decideDuration.Observe(elapsed.Seconds())

	capability := d.Capability
	if !Recognized(capability) {
		capability = "other"
	}
	strategy := d.Strategy
	if strategy == "" {
		strategy = "default"
	}
	outcome := "deny"
	if d.Allowed {
		outcome = "allow"
	}
	decisionsTotal.WithLabelValues(capability, strategy, outcome).Inc()
}
