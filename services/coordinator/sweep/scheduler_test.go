// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// countingSweeper signals on a channel each time it is invoked.
type countingSweeper struct {
	calls   atomic.Int64
	cleaned int
	err     error
	fired   chan struct{}
}

func (c *countingSweeper) Sweep(ctx context.Context) (int, error) {
	c.calls.Add(1)
	select {
	case c.fired <- struct{}{}:
	default:
	}
	return c.cleaned, c.err
}

func waitForSweep(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sweep cycle")
	}
}

// TestSchedulerRunsImmediatelyAndOnInterval verifies the initial sweep on
// Start plus at least one ticker-driven cycle.
func TestSchedulerRunsImmediatelyAndOnInterval(t *testing.T) {
	sw := &countingSweeper{cleaned: 1, fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: 10 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = s.Stop() }()

	waitForSweep(t, sw.fired)
	waitForSweep(t, sw.fired)
	if got := sw.calls.Load(); got < 2 {
		t.Errorf("sweeps = %d, want at least 2", got)
	}
}

// TestSchedulerRejectsDoubleStart verifies only one loop may run at a time.
func TestSchedulerRejectsDoubleStart(t *testing.T) {
	sw := &countingSweeper{fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: time.Hour})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer func() { _ = s.Stop() }()

	if err := s.Start(context.Background()); err == nil {
		t.Error("second start succeeded, want error")
	}
}

// TestSchedulerStopHaltsLoop verifies no cycles run after Stop returns.
func TestSchedulerStopHaltsLoop(t *testing.T) {
	sw := &countingSweeper{fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: 5 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForSweep(t, sw.fired)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Give any straggler cycle time to land, then require quiescence.
	time.Sleep(20 * time.Millisecond)
	settled := sw.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := sw.calls.Load(); got != settled {
		t.Errorf("sweeps advanced from %d to %d after Stop", settled, got)
	}
}

// TestSchedulerStopIsIdempotent verifies repeated Stop calls are safe.
func TestSchedulerStopIsIdempotent(t *testing.T) {
	sw := &countingSweeper{fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: time.Hour})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

// TestSchedulerRestartsAfterStop verifies the done channel is reset so a
// stopped scheduler can be started again.
func TestSchedulerRestartsAfterStop(t *testing.T) {
	sw := &countingSweeper{fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: 10 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForSweep(t, sw.fired)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer func() { _ = s.Stop() }()
	waitForSweep(t, sw.fired)
}

// TestSchedulerSurvivesSweepErrors verifies a failing sweep does not kill
// the loop.
func TestSchedulerSurvivesSweepErrors(t *testing.T) {
	sw := &countingSweeper{err: errors.New("store down"), fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: 10 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = s.Stop() }()

	waitForSweep(t, sw.fired)
	waitForSweep(t, sw.fired)
	if got := sw.calls.Load(); got < 2 {
		t.Errorf("sweeps = %d, want loop to keep running", got)
	}
}

// TestRunNowReturnsCount verifies the manual trigger reports the count.
func TestRunNowReturnsCount(t *testing.T) {
	sw := &countingSweeper{cleaned: 7, fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, DefaultConfig())

	cleaned, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if cleaned != 7 {
		t.Errorf("cleaned = %d, want 7", cleaned)
	}
}

// TestContextCancellationStopsLoop verifies the loop honors its context.
func TestContextCancellationStopsLoop(t *testing.T) {
	sw := &countingSweeper{fired: make(chan struct{}, 8)}
	s := NewScheduler(sw, nil, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForSweep(t, sw.fired)
	cancel()

	time.Sleep(20 * time.Millisecond)
	settled := sw.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := sw.calls.Load(); got != settled {
		t.Errorf("sweeps advanced from %d to %d after cancel", settled, got)
	}
}
