// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a CoordinationMetrics instance with a custom
// registry. This avoids conflicts with the global Prometheus registry and
// allows parallel testing.
func newTestMetrics(t *testing.T) *CoordinationMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinationSubsystem,
			Name:      "requests_total",
			Help:      "Total HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	requestDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinationSubsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"endpoint"},
	)

	sweepRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinationSubsystem,
			Name:      "sweep_runs_total",
			Help:      "Total sweep cycles by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	sweptLocksTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: coordinationSubsystem,
			Name:      "swept_locks_total",
			Help:      "Total expired lock entries removed by sweeps",
		},
	)

	// Register all metrics with the test registry
	reg.MustRegister(
		requestsTotal,
		requestDurationSeconds,
		sweepRunsTotal,
		sweptLocksTotal,
	)

	return &CoordinationMetrics{
		RequestsTotal:          requestsTotal,
		RequestDurationSeconds: requestDurationSeconds,
		SweepRunsTotal:         sweepRunsTotal,
		SweptLocksTotal:        sweptLocksTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry. This test must only run once per test binary execution since
// duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if result.RequestDurationSeconds == nil {
		t.Error("RequestDurationSeconds should not be nil")
	}
	if result.SweepRunsTotal == nil {
		t.Error("SweepRunsTotal should not be nil")
	}
	if result.SweptLocksTotal == nil {
		t.Error("SweptLocksTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordRequest("/v1/coordination/status", "POST", 200, 0.02)
	result.RecordSweep("scheduled", 3, nil)
}

func TestConstants(t *testing.T) {
	if metricsNamespace != "aleutian" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "aleutian")
	}
	if coordinationSubsystem != "coordination" {
		t.Errorf("coordinationSubsystem = %q, want %q", coordinationSubsystem, "coordination")
	}
}

// ============================================================================
// RecordRequest Tests
// ============================================================================

func TestRecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("/v1/coordination/check-status", "POST", 200, 0.012)

	val := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/coordination/check-status", "POST", "200"))
	if val != 1 {
		t.Errorf("RequestsTotal = %v, want 1", val)
	}
}

func TestRecordRequest_Multiple(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest("/v1/coordination/status", "POST", 200, 0.01)
	m.RecordRequest("/v1/coordination/status", "POST", 200, 0.02)
	m.RecordRequest("/v1/coordination/status", "POST", 400, 0.001)
	m.RecordRequest("/healthz", "GET", 200, 0.0005)

	okVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/coordination/status", "POST", "200"))
	if okVal != 2 {
		t.Errorf("status 200 count = %v, want 2", okVal)
	}

	badVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/coordination/status", "POST", "400"))
	if badVal != 1 {
		t.Errorf("status 400 count = %v, want 1", badVal)
	}

	healthVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/healthz", "GET", "200"))
	if healthVal != 1 {
		t.Errorf("healthz count = %v, want 1", healthVal)
	}
}

// ============================================================================
// RecordSweep Tests
// ============================================================================

func TestRecordSweep_Success(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSweep("scheduled", 4, nil)

	runs := testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("scheduled", "success"))
	if runs != 1 {
		t.Errorf("SweepRunsTotal = %v, want 1", runs)
	}

	swept := testutil.ToFloat64(m.SweptLocksTotal)
	if swept != 4 {
		t.Errorf("SweptLocksTotal = %v, want 4", swept)
	}
}

func TestRecordSweep_Error(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSweep("manual", 0, errors.New("redis down"))

	runs := testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("manual", "error"))
	if runs != 1 {
		t.Errorf("SweepRunsTotal error outcome = %v, want 1", runs)
	}

	swept := testutil.ToFloat64(m.SweptLocksTotal)
	if swept != 0 {
		t.Errorf("SweptLocksTotal = %v, want 0", swept)
	}
}

func TestRecordSweep_ZeroCleaned(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSweep("scheduled", 0, nil)
	m.RecordSweep("scheduled", 0, nil)

	runs := testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("scheduled", "success"))
	if runs != 2 {
		t.Errorf("SweepRunsTotal = %v, want 2", runs)
	}

	swept := testutil.ToFloat64(m.SweptLocksTotal)
	if swept != 0 {
		t.Errorf("SweptLocksTotal = %v, want 0", swept)
	}
}

// ============================================================================
// MetricsMiddleware Tests
// ============================================================================

func TestMetricsMiddleware_RecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	saved := DefaultMetrics
	DefaultMetrics = newTestMetrics(t)
	defer func() { DefaultMetrics = saved }()

	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	val := testutil.ToFloat64(DefaultMetrics.RequestsTotal.WithLabelValues("/ping", "GET", "200"))
	if val != 1 {
		t.Errorf("RequestsTotal = %v, want 1", val)
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	saved := DefaultMetrics
	DefaultMetrics = newTestMetrics(t)
	defer func() { DefaultMetrics = saved }()

	router := gin.New()
	router.Use(MetricsMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	router.ServeHTTP(w, req)

	val := testutil.ToFloat64(DefaultMetrics.RequestsTotal.WithLabelValues("unmatched", "GET", "404"))
	if val != 1 {
		t.Errorf("unmatched RequestsTotal = %v, want 1", val)
	}
}

func TestMetricsMiddleware_NilDefaultMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	saved := DefaultMetrics
	DefaultMetrics = nil
	defer func() { DefaultMetrics = saved }()

	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	// Middleware should not panic when metrics are uninitialized
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
