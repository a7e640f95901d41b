// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestPhaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_ingest_phase_transitions_total",
		Help: "Ingestion phase transitions observed by the orchestrator",
	}, []string{"phase"})

	ingestOutcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_ingest_outcome_total",
		Help: "Terminal ingestion outcomes by result and error kind",
	}, []string{"result", "error_kind"}) // result=ready|failed|cancelled

	ingestUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courseflow_ingest_upload_bytes_total",
		Help: "Bytes acknowledged by storage during binary transfers",
	})

	ingestPollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courseflow_ingest_poll_total",
		Help: "Job status polls by outcome",
	}, []string{"outcome"}) // outcome=ok|error|discarded

	ingestOrphansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courseflow_ingest_orphaned_uploads_total",
		Help: "Uploads whose bytes were stored but whose job registration failed",
	})
)

// RecordIngestPhase counts a phase transition.
func RecordIngestPhase(phase string) {
	ingestPhaseTotal.WithLabelValues(phase).Inc()
}

// RecordIngestOutcome counts a terminal ingestion outcome.
func RecordIngestOutcome(result, errorKind string) {
	if errorKind == "" {
		errorKind = "none"
	}
	ingestOutcomeTotal.WithLabelValues(result, errorKind).Inc()
}

// AddUploadBytes adds acknowledged transfer bytes.
func AddUploadBytes(n int64) {
	if n > 0 {
		ingestUploadBytes.Add(float64(n))
	}
}

// RecordPoll counts a poll attempt.
func RecordPoll(outcome string) {
	ingestPollTotal.WithLabelValues(outcome).Inc()
}

// RecordOrphanedUpload counts an orphaned upload.
func RecordOrphanedUpload() {
	ingestOrphansTotal.Inc()
}
