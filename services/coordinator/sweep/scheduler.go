// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sweep runs the background reaper for expired lock entries.
//
// Expiry is already enforced passively on every read, so the sweeper is a
// hygiene process: it keeps abandoned entries from accumulating in storage
// and from surfacing in raw snapshots. Missing a cycle is harmless.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
)

// Sweeper removes expired lock entries and reports how many were removed.
// *lock.Engine and *coordinate.Coordinator both satisfy it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Config holds settings for the background sweep scheduler.
//
// # Fields
//
//   - Interval: How often to run sweep cycles. Default: 1 minute.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns production defaults: a 1 minute interval, short
// enough that expired entries rarely outlive their TTL by much, long enough
// that the scan cost stays negligible.
func DefaultConfig() Config {
	return Config{Interval: 1 * time.Minute}
}

// Scheduler owns the background goroutine that periodically sweeps expired
// locks. Uses the ticker + done channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe. A mutex protects state transitions.
type Scheduler struct {
	sweeper Sweeper
	log     *logging.Logger
	config  Config
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a sweep scheduler ready to Start.
//
// # Inputs
//
//   - sweeper: The sweep implementation to drive.
//   - log: Structured logger. May be nil for the process default.
//   - config: Scheduler configuration. A non-positive interval falls back to
//     the default.
//
// # Outputs
//
//   - *Scheduler: Ready to Start().
func NewScheduler(sweeper Sweeper, log *logging.Logger, config Config) *Scheduler {
	if log == nil {
		log = logging.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Scheduler{
		sweeper: sweeper,
		log:     log,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Description
//
// Starts a goroutine that sweeps immediately and then at the configured
// interval until Stop() is called or the context is cancelled.
//
// # Inputs
//
//   - ctx: Context for cancellation. When cancelled, the loop stops.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweep scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset done channel for potential restart
	s.mu.Unlock()

	s.log.Info("sweep scheduler starting", "interval", s.config.Interval.String())
	go s.runLoop(ctx)
	return nil
}

// Stop signals the loop to exit. Safe to call multiple times; does not
// interrupt a sweep already in flight.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil // Already stopped
	}

	s.log.Info("sweep scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs one sweep cycle immediately, outside the scheduled
// cadence. This is what the admin cleanup endpoint calls.
//
// # Outputs
//
//   - int: Number of expired entries removed.
//   - error: Non-nil if the sweep fails.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx)
}

// runLoop is the scheduler goroutine.
func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run an initial sweep immediately on start
	s.executeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweep scheduler stopped (context cancelled)")
			return
		case <-s.done:
			s.log.Info("sweep scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs one cycle, keeping failures from crashing the loop.
func (s *Scheduler) executeSweep(ctx context.Context) {
	start := time.Now()
	cleaned, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep cycle failed", "error", err)
		return
	}

	// Only log at info when something was actually removed
	if cleaned > 0 {
		s.log.Info("sweep cycle completed",
			"cleaned", cleaned,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		s.log.Debug("sweep cycle completed (no expired locks)")
	}
}
