// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker state encoding for courseflow_breaker_state.
var breakerStateValue = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courseflow_breaker_state",
		Help: "Breaker state per guarded writer (0=closed, 1=half-open, 2=open)",
	}, []string{"breaker"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_breaker_trips_total",
		Help: "Transitions into the open state, by cause",
	}, []string{"breaker", "reason"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_breaker_rejections_total",
		Help: "Calls refused without reaching the backend because the breaker was open",
	}, []string{"breaker"})
)

// SetBreakerState publishes the breaker's state. Unknown states are ignored.
func SetBreakerState(breaker, state string) {
	if v, ok := breakerStateValue[state]; ok {
		breakerState.WithLabelValues(breaker).Set(v)
	}
}

// RecordBreakerTrip counts a transition to open. reason is "threshold" or
// "probe_failed".
func RecordBreakerTrip(breaker, reason string) {
	breakerTrips.WithLabelValues(breaker, reason).Inc()
}

// RecordBreakerRejection counts a call short-circuited by an open breaker.
func RecordBreakerRejection(breaker string) {
	breakerRejections.WithLabelValues(breaker).Inc()
}
