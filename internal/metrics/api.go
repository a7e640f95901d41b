// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseflow_api_request_total",
			Help: "Total number of course platform API requests",
		},
		[]string{"method", "route", "status_class"},
	)
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courseflow_api_request_duration_seconds",
			Help:    "Duration of course platform API requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 8),
		},
		[]string{"method", "route", "status_class"},
	)
	apiRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseflow_api_request_errors_total",
			Help: "Number of course platform API requests that did not return 2xx",
		},
		[]string{"method", "route", "status_class"},
	)
)

// StatusClass buckets an HTTP outcome for metric labels.
func StatusClass(err error, status int) string {
	if err != nil {
		return "error"
	}
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status > 0:
		return "1xx"
	}
	return "unknown"
}

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, route string, status int, duration time.Duration, err error) {
	class := StatusClass(err, status)
	apiRequestTotal.WithLabelValues(method, route, class).Inc()
	apiRequestDuration.WithLabelValues(method, route, class).Observe(duration.Seconds())
	if class != "2xx" {
		apiRequestErrors.WithLabelValues(method, route, class).Inc()
	}
}
