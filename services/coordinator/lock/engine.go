// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lock implements the coordinator's advisory multi-file lock engine.
//
// # Description
//
// Locks are hints for cooperative agents, not enforcement. Each (repo, branch)
// pair owns one hash keyed by file path whose values are serialized
// datatypes.LockEntry records. Acquisition is all-or-nothing across every
// requested path and runs inside a single server-side script, so two agents
// racing for overlapping path sets resolve into one winner and one clean
// rejection, never a partial grant.
//
// Expiry is passive. An entry at or past its expiry is treated as absent by
// every reader whether or not the sweeper has physically removed it yet, so
// correctness never depends on the sweeper running.
//
// # Thread Safety
//
// Engine is safe for concurrent use. All mutable state lives in the store.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/kv"
)

// DefaultTTL is how long an acquired lock survives without a refresh.
// Agents hold locks longer by re-posting their status before expiry.
const DefaultTTL = 5 * time.Minute

// keyPrefix namespaces lock hashes in the store.
const keyPrefix = "locks:"

// lockKey returns the hash key holding all entries for one (repo, branch).
func lockKey(repo, branch string) string {
	return keyPrefix + repo + ":" + branch
}

// AcquireRequest names the paths to lock and the identity and intent of the
// requesting agent.
type AcquireRequest struct {
	Repo      string
	Branch    string
	FilePaths []string
	UserID    string
	UserName  string
	Status    datatypes.LockStatus
	AgentHead string
	Message   string
}

// validate rejects requests the engine must never send to the store.
func (r AcquireRequest) validate() error {
	switch {
	case r.Repo == "":
		return fmt.Errorf("%w: repo is required", ErrInvalidRequest)
	case r.Branch == "":
		return fmt.Errorf("%w: branch is required", ErrInvalidRequest)
	case len(r.FilePaths) == 0:
		return fmt.Errorf("%w: at least one file path is required", ErrInvalidRequest)
	case r.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	case r.Message == "":
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	case !r.Status.Lockable():
		return fmt.Errorf("%w: status %q does not install locks", ErrInvalidRequest, r.Status)
	}
	for _, p := range r.FilePaths {
		if p == "" {
			return fmt.Errorf("%w: empty file path", ErrInvalidRequest)
		}
	}
	return nil
}

// AcquireResult reports the outcome of one atomic acquisition attempt.
//
// Success false is a business outcome, not an error: the requested set
// overlaps a lock held by someone else and the caller should pick other work.
type AcquireResult struct {
	Success bool

	// Locks holds the installed entries, one per requested path, in request
	// order. Populated only on success.
	Locks []datatypes.LockEntry

	// ConflictingFile is the first requested path already held, in request
	// order.
	ConflictingFile string

	// ConflictingUser and ConflictingUserName identify the current holder.
	ConflictingUser     string
	ConflictingUserName string

	// Reason is ReasonFileConflict on conflict, empty otherwise.
	Reason string
}

// Engine performs atomic lock operations against a kv.Store.
type Engine struct {
	store kv.Store
	log   *logging.Logger

	// ttl and now are fixed in production and swapped in tests to cross
	// expiry boundaries without sleeping.
	ttl time.Duration
	now func() time.Time
}

// NewEngine returns an Engine using the production TTL and clock.
func NewEngine(store kv.Store, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default()
	}
	initMetrics()
	return &Engine{
		store: store,
		log:   log,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
}

// Acquire installs locks on every requested path or none of them.
//
// # Description
//
// A single script run checks every path and then commits every entry, with no
// interleaving between the phases. An existing entry blocks the request when
// it is not expired and belongs to a different user. The caller's own entries
// never block, so re-acquiring refreshes the TTL and rewrites status, message,
// and agent head in place.
//
// # Inputs
//
//   - ctx: cancellation and tracing.
//   - req: paths, identity, and intent. Malformed requests are rejected
//     before touching the store.
//
// # Outputs
//
//   - *AcquireResult: success with the installed entries, or the first
//     conflict in request order.
//   - error: ErrInvalidRequest, ErrInvalidLockResponse, or a wrapped store
//     failure. Conflicts are not errors.
func (e *Engine) Acquire(ctx context.Context, req AcquireRequest) (*AcquireResult, error) {
	ctx, span := tracer.Start(ctx, "lock.Acquire",
		trace.WithAttributes(
			attribute.String("repo", req.Repo),
			attribute.String("branch", req.Branch),
			attribute.Int("paths", len(req.FilePaths)),
		),
	)
	defer span.End()

	if err := req.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	nowMs := e.now().UnixMilli()
	entries := make([]datatypes.LockEntry, len(req.FilePaths))
	args := make([]interface{}, 0, 3+2*len(req.FilePaths))
	args = append(args, nowMs, req.UserID, len(req.FilePaths))
	for i, path := range req.FilePaths {
		entries[i] = datatypes.LockEntry{
			FilePath:  path,
			UserID:    req.UserID,
			UserName:  req.UserName,
			Status:    req.Status,
			AgentHead: req.AgentHead,
			Message:   req.Message,
			Timestamp: nowMs,
			Expiry:    nowMs + e.ttl.Milliseconds(),
		}
		raw, err := json.Marshal(entries[i])
		if err != nil {
			return nil, fmt.Errorf("marshal lock entry %s: %w", path, err)
		}
		args = append(args, path, string(raw))
	}

	reply, err := e.store.Eval(ctx, acquireScript, []string{lockKey(req.Repo, req.Branch)}, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("acquire locks: %w", err)
	}

	result, err := decodeAcquireReply(reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if result.Success {
		result.Locks = entries
		acquireTotal.Add(ctx, int64(len(entries)))
	} else {
		conflictTotal.Add(ctx, 1)
		span.SetAttributes(attribute.String("conflicting_file", result.ConflictingFile))
	}
	return result, nil
}

// decodeAcquireReply maps the script reply onto an AcquireResult.
//
// The script returns {1} on success or {0, path, holder_id, holder_name} on
// conflict. Anything else is a protocol violation.
func decodeAcquireReply(reply interface{}) (*AcquireResult, error) {
	arr, ok := reply.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("%w: unexpected reply %T", ErrInvalidLockResponse, reply)
	}
	code, ok := arr[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: non-integer status", ErrInvalidLockResponse)
	}
	if code == 1 {
		return &AcquireResult{Success: true}, nil
	}
	if len(arr) < 4 {
		return nil, fmt.Errorf("%w: truncated conflict reply", ErrInvalidLockResponse)
	}
	res := &AcquireResult{Reason: ReasonFileConflict}
	res.ConflictingFile, _ = arr[1].(string)
	res.ConflictingUser, _ = arr[2].(string)
	res.ConflictingUserName, _ = arr[3].(string)
	return res, nil
}

// Release removes the caller's entries for the given paths.
//
// Entries held by another user are skipped rather than failed: an expired
// lock may have been legitimately taken over, and a late release must not
// steal it back. Returns the paths actually removed.
func (e *Engine) Release(ctx context.Context, repo, branch string, paths []string, userID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "lock.Release",
		trace.WithAttributes(
			attribute.String("repo", repo),
			attribute.String("branch", branch),
			attribute.Int("paths", len(paths)),
		),
	)
	defer span.End()

	if userID == "" {
		err := fmt.Errorf("%w: user id is required", ErrInvalidRequest)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, 1+len(paths))
	args = append(args, userID)
	for _, p := range paths {
		args = append(args, p)
	}

	reply, err := e.store.Eval(ctx, releaseScript, []string{lockKey(repo, branch)}, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("release locks: %w", err)
	}

	arr, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: unexpected reply %T", ErrInvalidLockResponse, reply)
	}
	released := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			released = append(released, s)
		}
	}
	releaseTotal.Add(ctx, int64(len(released)))
	return released, nil
}

// Snapshot returns every live entry for one (repo, branch), sorted by path.
//
// Reads apply passive expiry: entries at or past their expiry are dropped, as
// are entries that fail to decode. An undecodable entry is logged and left in
// place for the sweeper.
func (e *Engine) Snapshot(ctx context.Context, repo, branch string) ([]datatypes.LockEntry, error) {
	ctx, span := tracer.Start(ctx, "lock.Snapshot",
		trace.WithAttributes(
			attribute.String("repo", repo),
			attribute.String("branch", branch),
		),
	)
	defer span.End()

	fields, err := e.store.HGetAll(ctx, lockKey(repo, branch))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("snapshot locks: %w", err)
	}

	nowMs := e.now().UnixMilli()
	entries := make([]datatypes.LockEntry, 0, len(fields))
	for path, raw := range fields {
		if entry, ok := e.decodeLive(path, raw, nowMs); ok {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FilePath < entries[j].FilePath })
	return entries, nil
}

// Check returns the live entries among the requested paths, in request order.
// Paths with no live entry are simply absent from the result.
func (e *Engine) Check(ctx context.Context, repo, branch string, paths []string) ([]datatypes.LockEntry, error) {
	ctx, span := tracer.Start(ctx, "lock.Check",
		trace.WithAttributes(
			attribute.String("repo", repo),
			attribute.String("branch", branch),
			attribute.Int("paths", len(paths)),
		),
	)
	defer span.End()

	if len(paths) == 0 {
		return nil, nil
	}

	fields, err := e.store.HMGet(ctx, lockKey(repo, branch), paths...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("check locks: %w", err)
	}

	nowMs := e.now().UnixMilli()
	entries := make([]datatypes.LockEntry, 0, len(fields))
	for _, path := range paths {
		raw, ok := fields[path]
		if !ok {
			continue
		}
		if entry, ok := e.decodeLive(path, raw, nowMs); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// decodeLive parses one stored entry and applies passive expiry.
func (e *Engine) decodeLive(path, raw string, nowMs int64) (datatypes.LockEntry, bool) {
	var entry datatypes.LockEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		e.log.Warn("dropping undecodable lock entry", "path", path, "error", err)
		return datatypes.LockEntry{}, false
	}
	if entry.Expired(nowMs) {
		return datatypes.LockEntry{}, false
	}
	return entry, true
}

// Sweep physically removes expired and undecodable entries across all repos.
//
// # Description
//
// Passive expiry already hides these entries from readers; sweeping reclaims
// storage and keeps snapshots small. Each hash is swept by its own script run
// so an owner refreshing an entry mid-sweep can never lose a live lock.
//
// # Outputs
//
//   - int: number of entries removed.
//   - error: non-nil only when key enumeration fails. Per-key script
//     failures are logged and skipped so one bad hash cannot stall the
//     sweeper.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "lock.Sweep")
	defer span.End()

	keys, err := e.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("enumerate lock keys: %w", err)
	}

	nowMs := e.now().UnixMilli()
	removed := 0
	for _, key := range keys {
		reply, err := e.store.Eval(ctx, sweepScript, []string{key}, nowMs)
		if err != nil {
			e.log.Warn("sweep failed for key", "key", key, "error", err)
			continue
		}
		if n, ok := reply.(int64); ok {
			removed += int(n)
		}
	}

	if removed > 0 {
		sweptTotal.Add(ctx, int64(removed))
	}
	span.SetAttributes(attribute.Int("removed", removed))
	return removed, nil
}

// ReleaseAll wipes every entry for one (repo, branch) regardless of owner.
// Intended for test supervision and manual recovery, not routine agent flow.
func (e *Engine) ReleaseAll(ctx context.Context, repo, branch string) (int, error) {
	ctx, span := tracer.Start(ctx, "lock.ReleaseAll",
		trace.WithAttributes(
			attribute.String("repo", repo),
			attribute.String("branch", branch),
		),
	)
	defer span.End()

	reply, err := e.store.Eval(ctx, releaseAllScript, []string{lockKey(repo, branch)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("release all locks: %w", err)
	}
	n, ok := reply.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: non-integer count", ErrInvalidLockResponse)
	}
	releaseTotal.Add(ctx, n)
	return int(n), nil
}
