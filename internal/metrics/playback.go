// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkpointDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_playback_checkpoint_dispatch_total",
		Help: "Checkpoint dispatches by trigger and outcome",
	}, []string{"trigger", "outcome"}) // trigger=tick|pause|ended|detach|flush outcome=ok|dropped|breaker_open|superseded

	checkpointThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courseflow_playback_checkpoint_throttled_total",
		Help: "Ticks suppressed by checkpoint throttling",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courseflow_playback_active_sessions",
		Help: "Attached playback sessions",
	})

	playbackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_playback_errors_total",
		Help: "Playback errors by kind",
	}, []string{"kind"})

	bufferingEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courseflow_playback_stalls_total",
		Help: "Stall signals that moved a session into buffering",
	})
)

// RecordCheckpointDispatch counts one dispatch attempt.
func RecordCheckpointDispatch(trigger, outcome string) {
	checkpointDispatchTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordCheckpointThrottled counts one suppressed tick.
func RecordCheckpointThrottled() {
	checkpointThrottledTotal.Inc()
}

// IncActiveSessions marks a session as attached.
func IncActiveSessions() { activeSessions.Inc() }

// DecActiveSessions marks a session as detached.
func DecActiveSessions() { activeSessions.Dec() }

// RecordPlaybackError counts a playback error.
func RecordPlaybackError(kind string) {
	playbackErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordStall counts a stall.
func RecordStall() {
	bufferingEventsTotal.Inc()
}
