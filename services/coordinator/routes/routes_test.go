// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/activity"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/coordinate"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/handlers"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/kv"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/lock"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

type stubHeads struct{}

func (stubHeads) GetHeadCached(_ context.Context, _ remote.Repo, _ string, _ time.Duration) (string, error) {
	return "abc123", nil
}

type stubGraphs struct{}

func (stubGraphs) Get(_ context.Context, _ remote.Repo, _ string, _ bool) (*datatypes.DependencyGraph, error) {
	return &datatypes.DependencyGraph{Version: "abc123"}, nil
}

func (stubGraphs) Cached(_ context.Context, _ remote.Repo, _ string) (*datatypes.DependencyGraph, error) {
	return &datatypes.DependencyGraph{Version: "abc123"}, nil
}

func newTestRouter(t *testing.T, sweepSecret string) *gin.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := kv.New(context.Background(), kv.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("kv.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine := lock.NewEngine(store, nil)
	ring := activity.NewRing(16)
	coord := coordinate.New(engine, stubHeads{}, stubGraphs{}, ring, nil)
	h := handlers.New(coord, ring, store, nil)

	router := gin.New()
	SetupRoutes(router, h, sweepSecret)
	return router
}

// ============================================================================
// Route Registration Tests
// ============================================================================

func TestSetupRoutes_CoreRoutes(t *testing.T) {
	router := newTestRouter(t, "")

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/healthz"},
		{"GET", "/metrics"},
		{"POST", "/v1/coordination/check-status"},
		{"POST", "/v1/coordination/status"},
		{"GET", "/v1/coordination/graph"},
		{"GET", "/v1/coordination/locks"},
		{"POST", "/v1/coordination/release-all"},
		{"GET", "/v1/coordination/activity"},
		{"POST", "/v1/admin/cleanup-stale-locks"},
	}

	routes := router.Routes()
	for _, expected := range coreRoutes {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", expected.method, expected.path)
		}
	}
}

func TestSetupRoutes_V1GroupExists(t *testing.T) {
	router := newTestRouter(t, "")

	routes := router.Routes()
	v1Routes := 0
	for _, r := range routes {
		if len(r.Path) > 3 && r.Path[:3] == "/v1" {
			v1Routes++
		}
	}

	if v1Routes < 7 {
		t.Errorf("Expected at least 7 /v1 routes, got %d", v1Routes)
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthzEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Healthz endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	// Should return prometheus format
	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

// ============================================================================
// Admin Auth Tests
// ============================================================================

func TestSetupRoutes_AdminRequiresSecret(t *testing.T) {
	router := newTestRouter(t, "topsecret")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/admin/cleanup-stale-locks", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Cleanup without token returned %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/v1/admin/cleanup-stale-locks", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Cleanup with token returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_AdminOpenWithoutSecret(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/admin/cleanup-stale-locks", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Cleanup on open deployment returned %d, want %d", w.Code, http.StatusOK)
	}
}
