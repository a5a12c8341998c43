// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// coordinator service.
//
// # Description
//
// Two metric surfaces feed the /metrics endpoint:
//   - Prometheus metrics defined here: HTTP request counters and latency
//     histograms per endpoint, plus sweep outcomes.
//   - OpenTelemetry instruments recorded inside the lock, graph, remote,
//     and coordinate packages, bridged into the Prometheus registry by
//     Init() when the prometheus metric exporter is selected.
//
// # Integration
//
// Use with Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for coordination metrics
const coordinationSubsystem = "coordination"

// CoordinationMetrics holds the Prometheus metrics for the HTTP surface and
// the background sweeper.
//
// # Fields
//
//   - RequestsTotal: Counter of requests by endpoint, method, and status
//   - RequestDurationSeconds: Histogram of request latency by endpoint
//   - SweepRunsTotal: Counter of sweep cycles by trigger and outcome
//   - SweptLocksTotal: Counter of expired lock entries removed
//
// # Thread Safety
//
// All operations are thread-safe.
type CoordinationMetrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: endpoint (route template), method, status (numeric code)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency.
	// Labels: endpoint (route template)
	RequestDurationSeconds *prometheus.HistogramVec

	// SweepRunsTotal counts sweep cycles.
	// Labels: trigger (scheduled, manual), outcome (success, error)
	SweepRunsTotal *prometheus.CounterVec

	// SweptLocksTotal counts expired lock entries removed by sweeps.
	SweptLocksTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of CoordinationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *CoordinationMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at application
// startup.
//
// # Outputs
//
//   - *CoordinationMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *CoordinationMetrics {
	DefaultMetrics = &CoordinationMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: coordinationSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: coordinationSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"endpoint"},
		),

		SweepRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: coordinationSubsystem,
				Name:      "sweep_runs_total",
				Help:      "Total sweep cycles by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),

		SweptLocksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: coordinationSubsystem,
				Name:      "swept_locks_total",
				Help:      "Total expired lock entries removed by sweeps",
			},
		),
	}

	return DefaultMetrics
}

// RecordRequest records a completed HTTP request.
//
// # Inputs
//
//   - endpoint: The route template that handled the request.
//   - method: The HTTP method.
//   - status: The response status code.
//   - seconds: Request duration in seconds.
func (m *CoordinationMetrics) RecordRequest(endpoint, method string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(endpoint).Observe(seconds)
}

// RecordSweep records a sweep cycle.
//
// # Inputs
//
//   - trigger: What started the cycle ("scheduled" or "manual").
//   - cleaned: Number of entries removed.
//   - err: The cycle error, nil on success.
func (m *CoordinationMetrics) RecordSweep(trigger string, cleaned int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.SweepRunsTotal.WithLabelValues(trigger, outcome).Inc()
	if cleaned > 0 {
		m.SweptLocksTotal.Add(float64(cleaned))
	}
}

// MetricsMiddleware creates a Gin middleware that records request counts
// and latency per route template.
//
// Requests are labeled with the route template, not the raw URL, to keep
// metric cardinality bounded. Unmatched paths collapse into one label.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if DefaultMetrics == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		DefaultMetrics.RecordRequest(endpoint, c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}
