// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	progressionAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_progression_anomalies_total",
		Help: "Anomalies flagged while computing course views",
	}, []string{"kind"}) // kind=duplicate_order|unlock_without_predecessor|regression

	progressionRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_progression_refresh_total",
		Help: "Module progress refreshes by source",
	}, []string{"source"}) // source=backend|cache|shared

	gatedActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_progression_gated_actions_total",
		Help: "Gated actions by action and decision",
	}, []string{"action", "decision"}) // decision=allowed|disabled
)

// RecordProgressionAnomaly counts a flagged anomaly.
func RecordProgressionAnomaly(kind string) {
	progressionAnomalies.WithLabelValues(kind).Inc()
}

// RecordProgressionRefresh counts a refresh by where its data came from.
func RecordProgressionRefresh(source string) {
	progressionRefreshTotal.WithLabelValues(source).Inc()
}

// RecordGatedAction counts a gating decision.
func RecordGatedAction(action string, allowed bool) {
	decision := "disabled"
	if allowed {
		decision = "allowed"
	}
	gatedActionsTotal.WithLabelValues(action, decision).Inc()
}
