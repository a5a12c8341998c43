// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph maintains the per-branch file dependency graph.
//
// # Description
//
// The graph is rebuilt incrementally from the remote: a head comparison
// decides whether anything moved at all, then a blob-sha diff decides which
// files must be reparsed. Parsed text lives in a content-addressed cache,
// so renames and force-pushes that keep blob contents cost no remote
// fetches. All state is persisted per (repo, branch) and survives
// coordinator restarts.
//
// Lock information is overlaid on every served graph at read time and is
// never part of the persisted state.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/kv"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
)

const (
	// DefaultHeadCheckMinInterval is how long a remote head lookup stays
	// authoritative. Within the window, reads are served from the stored
	// graph without any remote traffic.
	DefaultHeadCheckMinInterval = 20 * time.Second

	// DefaultRateLimitCooldown is the remote backoff window applied when
	// quota exhaustion carries no reset hint.
	DefaultRateLimitCooldown = time.Minute
)

// ErrNoGraph is returned by Cached when nothing usable is stored for the
// requested (repo, branch).
var ErrNoGraph = errors.New("graph: no cached graph")

// Config tunes the service's freshness windows.
type Config struct {
	HeadCheckMinInterval time.Duration
	RateLimitCooldown    time.Duration
}

// DefaultConfig returns the production windows.
func DefaultConfig() Config {
	return Config{
		HeadCheckMinInterval: DefaultHeadCheckMinInterval,
		RateLimitCooldown:    DefaultRateLimitCooldown,
	}
}

// LockReader supplies the live lock snapshot overlaid on served graphs.
// *lock.Engine satisfies it.
type LockReader interface {
	Snapshot(ctx context.Context, repo, branch string) ([]datatypes.LockEntry, error)
}

// Service builds, stores, and serves dependency graphs.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent Get calls for the same (repo, branch)
// collapse into a single build; every caller still receives its own copy
// with its own lock overlay.
type Service struct {
	store  kv.Store
	remote remote.Client
	locks  LockReader
	log    *logging.Logger
	cfg    Config

	flight singleflight.Group

	// now is swapped in tests.
	now func() time.Time
}

// NewService wires a graph service. A nil locks reader disables the
// overlay, which is only acceptable in tests.
func NewService(store kv.Store, rc remote.Client, locks LockReader, log *logging.Logger, cfg Config) *Service {
	if log == nil {
		log = logging.Default()
	}
	if cfg.HeadCheckMinInterval <= 0 {
		cfg.HeadCheckMinInterval = DefaultHeadCheckMinInterval
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = DefaultRateLimitCooldown
	}
	initMetrics()
	return &Service{
		store:  store,
		remote: rc,
		locks:  locks,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Get returns the graph for (repo, branch), rebuilding it first when the
// remote head moved. force skips every freshness shortcut and rebuilds
// against the live head.
//
// Inside a rate-limit window the stored graph is served as-is; when there
// is none, the quota error surfaces to the caller.
func (s *Service) Get(ctx context.Context, repo remote.Repo, branch string, force bool) (*datatypes.DependencyGraph, error) {
	ctx, span := tracer.Start(ctx, "graph.Get")
	span.SetAttributes(
		attribute.String("repo", repo.String()),
		attribute.String("branch", branch),
		attribute.Bool("force", force),
	)
	defer span.End()

	flightKey := repo.String() + "|" + branch
	v, err, _ := s.flight.Do(flightKey, func() (interface{}, error) {
		return s.resolveGraph(ctx, repo, branch, force)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g := cloneGraph(v.(*datatypes.DependencyGraph))
	if err := s.overlayLocks(ctx, g, repo.String(), branch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return g, nil
}

// Cached returns the stored structural graph without touching the remote
// and without a lock overlay. Callers use it where a stale or absent graph
// is acceptable and remote traffic is not.
func (s *Service) Cached(ctx context.Context, repo remote.Repo, branch string) (*datatypes.DependencyGraph, error) {
	g, ok := s.loadStored(ctx, repo.String(), branch)
	if !ok {
		return nil, ErrNoGraph
	}
	return cloneGraph(g), nil
}

// resolveGraph returns a structural graph without a lock overlay. At most
// one resolveGraph runs per (repo, branch) at a time.
func (s *Service) resolveGraph(ctx context.Context, repo remote.Repo, branch string, force bool) (*datatypes.DependencyGraph, error) {
	rkey := repo.String()
	nowMs := s.now().UnixMilli()

	if !force {
		// Inside a rate-limit window stale data beats remote traffic.
		if until, ok := s.readMs(ctx, rateLimitedKey(rkey, branch)); ok && nowMs < until {
			if g, ok := s.loadStored(ctx, rkey, branch); ok {
				observeServe(ctx, "stale")
				return g, nil
			}
			return nil, &remote.QuotaError{ResetAt: time.UnixMilli(until)}
		}

		// A recent head check plus a stored graph means nothing to do.
		if checkedAt, ok := s.readMs(ctx, headCheckedKey(rkey, branch)); ok &&
			nowMs-checkedAt <= s.cfg.HeadCheckMinInterval.Milliseconds() {
			if g, ok := s.loadStored(ctx, rkey, branch); ok {
				observeServe(ctx, "cache")
				return g, nil
			}
		}
	}

	var (
		head string
		err  error
	)
	if force {
		head, err = s.remote.GetHead(ctx, repo, branch)
	} else {
		head, err = s.remote.GetHeadCached(ctx, repo, branch, s.cfg.HeadCheckMinInterval)
	}
	if err != nil {
		return s.quotaFallback(ctx, rkey, branch, err)
	}

	if serr := s.store.Set(ctx, headCheckedKey(rkey, branch), formatMs(nowMs), 0); serr != nil {
		s.log.Warn("persist head check stamp", "repo", rkey, "branch", branch, "error", serr)
	}

	if !force {
		version, verr := s.store.Get(ctx, metaKey(rkey, branch))
		if verr != nil && !errors.Is(verr, kv.ErrNotFound) {
			return nil, fmt.Errorf("load graph version: %w", verr)
		}
		if version != "" && version == head {
			if g, ok := s.loadStored(ctx, rkey, branch); ok {
				observeServe(ctx, "cache")
				return g, nil
			}
			// Version says current but the blob is gone. Fall through.
		}
	}

	g, err := s.rebuild(ctx, repo, branch, head)
	if err != nil {
		return s.quotaFallback(ctx, rkey, branch, err)
	}
	observeServe(ctx, "fresh")
	return g, nil
}

// quotaFallback converts quota exhaustion into stale service where
// possible. It records the backoff window so subsequent reads skip the
// remote entirely until it passes. Non-quota errors pass through.
func (s *Service) quotaFallback(ctx context.Context, rkey, branch string, err error) (*datatypes.DependencyGraph, error) {
	var qe *remote.QuotaError
	if !errors.As(err, &qe) {
		return nil, err
	}

	until := qe.ResetAt
	if until.IsZero() {
		until = s.now().Add(s.cfg.RateLimitCooldown)
	}
	if serr := s.store.Set(ctx, rateLimitedKey(rkey, branch), formatMs(until.UnixMilli()), 0); serr != nil {
		s.log.Warn("persist rate limit window", "repo", rkey, "branch", branch, "error", serr)
	}
	s.log.Warn("remote quota exhausted, backing off",
		"repo", rkey, "branch", branch, "until", until.UTC().Format(time.RFC3339))

	if g, ok := s.loadStored(ctx, rkey, branch); ok {
		observeServe(ctx, "stale")
		return g, nil
	}
	return nil, err
}

// loadStored deserializes the stored structural graph. A corrupt blob
// reads as absent and is overwritten by the next successful build.
func (s *Service) loadStored(ctx context.Context, rkey, branch string) (*datatypes.DependencyGraph, bool) {
	raw, err := s.store.Get(ctx, graphKey(rkey, branch))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn("read graph blob", "repo", rkey, "branch", branch, "error", err)
		}
		return nil, false
	}
	var g datatypes.DependencyGraph
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		s.log.Warn("dropping corrupt graph blob", "repo", rkey, "branch", branch, "error", err)
		return nil, false
	}
	g.Locks = nil
	return &g, true
}

// overlayLocks attaches the live lock snapshot to g.
func (s *Service) overlayLocks(ctx context.Context, g *datatypes.DependencyGraph, rkey, branch string) error {
	if s.locks == nil {
		g.Locks = map[string]datatypes.LockEntry{}
		return nil
	}
	entries, err := s.locks.Snapshot(ctx, rkey, branch)
	if err != nil {
		return fmt.Errorf("overlay locks: %w", err)
	}
	g.Locks = make(map[string]datatypes.LockEntry, len(entries))
	for _, e := range entries {
		g.Locks[e.FilePath] = e
	}
	return nil
}

// readMs loads an epoch-ms scalar. Malformed values read as absent.
func (s *Service) readMs(ctx context.Context, key string) (int64, bool) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func formatMs(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// cloneGraph copies the structural parts so concurrent callers never share
// slices or the lock map.
func cloneGraph(g *datatypes.DependencyGraph) *datatypes.DependencyGraph {
	return &datatypes.DependencyGraph{
		Nodes:    append([]datatypes.GraphNode(nil), g.Nodes...),
		Edges:    append([]datatypes.GraphEdge(nil), g.Edges...),
		Version:  g.Version,
		Metadata: g.Metadata,
	}
}
