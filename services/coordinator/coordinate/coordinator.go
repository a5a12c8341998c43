// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinate is the decision function between agents sharing a
// repository.
//
// # Description
//
// Every operation computes an orchestration command telling the caller what
// to do next. Conflicts and staleness are business outcomes carried inside
// successful responses; only malformed requests, remote quota exhaustion,
// and infrastructure failures surface as errors.
//
// The coordinator never holds state of its own. Locks live in the lock
// engine, structure lives in the graph service, and the head cache lives
// behind the remote client. That keeps any number of coordinator replicas
// interchangeable.
package coordinate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
	"github.com/AleutianAI/AleutianSwarm/pkg/validation"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/activity"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/lock"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
)

// headMaxAge bounds how stale a cached remote head may be when a decision
// reads it. It matches the graph service's head-check window.
const headMaxAge = 20 * time.Second

// LockEngine is the slice of the lock engine the coordinator drives.
// *lock.Engine satisfies it.
type LockEngine interface {
	Acquire(ctx context.Context, req lock.AcquireRequest) (*lock.AcquireResult, error)
	Release(ctx context.Context, repo, branch string, paths []string, userID string) ([]string, error)
	Check(ctx context.Context, repo, branch string, paths []string) ([]datatypes.LockEntry, error)
	Snapshot(ctx context.Context, repo, branch string) ([]datatypes.LockEntry, error)
	ReleaseAll(ctx context.Context, repo, branch string) (int, error)
	Sweep(ctx context.Context) (int, error)
}

// GraphProvider is the slice of the graph service the coordinator drives.
// *graph.Service satisfies it.
type GraphProvider interface {
	Get(ctx context.Context, repo remote.Repo, branch string, force bool) (*datatypes.DependencyGraph, error)
	Cached(ctx context.Context, repo remote.Repo, branch string) (*datatypes.DependencyGraph, error)
}

// HeadResolver resolves branch heads. remote.Client satisfies it.
type HeadResolver interface {
	GetHeadCached(ctx context.Context, repo remote.Repo, branch string, maxAge time.Duration) (string, error)
}

// Identity is the caller identity extracted from transport headers.
type Identity struct {
	UserID   string
	UserName string
}

// Coordinator composes the lock engine, remote, graph service, and activity
// sink into the coordination operations.
//
// # Thread Safety
//
// Safe for concurrent use; it carries no mutable state.
type Coordinator struct {
	engine LockEngine
	heads  HeadResolver
	graphs GraphProvider
	sink   activity.Sink
	log    *logging.Logger

	// now is swapped in tests.
	now func() time.Time
}

// New wires a coordinator. A nil sink discards events; a nil log falls back
// to the process default.
func New(engine LockEngine, heads HeadResolver, graphs GraphProvider, sink activity.Sink, log *logging.Logger) *Coordinator {
	if sink == nil {
		sink = activity.Nop{}
	}
	if log == nil {
		log = logging.Default()
	}
	initMetrics()
	return &Coordinator{
		engine: engine,
		heads:  heads,
		graphs: graphs,
		sink:   sink,
		log:    log,
		now:    time.Now,
	}
}

// CheckStatus reports whether work on the requested files may proceed.
//
// The head comparison and the lock read are two separate snapshots, so a
// PROCEED here is advisory; a subsequent post_status may still conflict.
func (c *Coordinator) CheckStatus(ctx context.Context, req datatypes.CheckStatusRequest) (*datatypes.CheckStatusResponse, error) {
	ctx, span := tracer.Start(ctx, "coordinate.CheckStatus", trace.WithAttributes(
		attribute.String("branch", req.Branch),
		attribute.Int("files", len(req.FilePaths)),
	))
	defer span.End()
	start := time.Now()

	resp, err := c.checkStatus(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("action", string(resp.Orchestration.Action)))
	observeDecision(ctx, "check_status", resp.Orchestration.Action, start)
	return resp, nil
}

func (c *Coordinator) checkStatus(ctx context.Context, req datatypes.CheckStatusRequest) (*datatypes.CheckStatusResponse, error) {
	repo, err := canonicalize(req.RepoURL)
	if err != nil {
		return nil, err
	}
	if err := validatePaths(req.Branch, req.FilePaths); err != nil {
		return nil, err
	}
	if req.AgentHead == "" {
		return nil, fmt.Errorf("%w: agent_head is required", ErrValidation)
	}

	head, err := c.heads.GetHeadCached(ctx, repo, req.Branch, headMaxAge)
	if err != nil {
		return nil, err
	}

	direct, err := c.engine.Check(ctx, repo.String(), req.Branch, req.FilePaths)
	if err != nil {
		return nil, err
	}

	resp := &datatypes.CheckStatusResponse{
		RepoHead: head,
		Locks:    lockMap(direct),
		Warnings: []string{},
	}

	switch {
	case req.AgentHead != head:
		resp.Status = datatypes.CoordinationStale
		resp.Orchestration = datatypes.Orchestration{
			Action:  datatypes.ActionPull,
			Command: datatypes.CommandPullRebase,
			Reason:  staleReason(head),
		}
	case len(direct) > 0:
		resp.Status = datatypes.CoordinationConflict
		resp.Orchestration = switchTask(direct[0], datatypes.LockKindDirect, "")
	default:
		hit, graphOK, err := c.neighborLock(ctx, repo, req.Branch, req.FilePaths)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			resp.Status = datatypes.CoordinationConflict
			resp.Orchestration = switchTask(hit.entry, datatypes.LockKindNeighbor, hit.requested)
			break
		}
		if !graphOK {
			resp.Warnings = append(resp.Warnings, "dependency graph unavailable; neighbor conflicts were not checked")
		}
		resp.Status = datatypes.CoordinationOK
		resp.Orchestration = proceed("No conflicts detected.")
	}
	return resp, nil
}

// PostStatus records what the agent is doing and dispatches on the verb:
// WRITING and READING acquire, OPEN releases, anything else is recorded
// informationally.
func (c *Coordinator) PostStatus(ctx context.Context, id Identity, req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	ctx, span := tracer.Start(ctx, "coordinate.PostStatus", trace.WithAttributes(
		attribute.String("branch", req.Branch),
		attribute.String("status", req.Status),
		attribute.Int("files", len(req.FilePaths)),
	))
	defer span.End()
	start := time.Now()

	resp, err := c.postStatus(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("success", resp.Success),
		attribute.String("action", string(resp.Orchestration.Action)),
	)
	observeDecision(ctx, "post_status", resp.Orchestration.Action, start)
	return resp, nil
}

func (c *Coordinator) postStatus(ctx context.Context, id Identity, req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	repo, err := canonicalize(req.RepoURL)
	if err != nil {
		return nil, err
	}
	if err := validatePaths(req.Branch, req.FilePaths); err != nil {
		return nil, err
	}
	switch {
	case id.UserID == "":
		return nil, fmt.Errorf("%w: caller identity header is required", ErrValidation)
	case req.Status == "":
		return nil, fmt.Errorf("%w: status is required", ErrValidation)
	case req.Message == "":
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if err := validation.ValidateUserID(id.UserID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	switch datatypes.LockStatus(req.Status) {
	case datatypes.StatusOpen:
		return c.handleOpen(ctx, id, repo, req)
	case datatypes.StatusWriting:
		return c.handleWriting(ctx, id, repo, req)
	case datatypes.StatusReading:
		return c.handleReading(ctx, id, repo, req)
	default:
		return c.handleInformational(ctx, id, repo, req)
	}
}

// handleOpen releases the caller's locks. A release that claims completion
// without having advanced the branch is refused with PUSH.
func (c *Coordinator) handleOpen(ctx context.Context, id Identity, repo remote.Repo, req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	if req.NewRepoHead != "" {
		if req.AgentHead == "" {
			return nil, fmt.Errorf("%w: agent_head is required when new_repo_head is supplied", ErrValidation)
		}
		if req.NewRepoHead == req.AgentHead {
			return &datatypes.PostStatusResponse{
				Success: false,
				Orchestration: datatypes.Orchestration{
					Action:  datatypes.ActionPush,
					Command: datatypes.CommandPush,
					Reason:  "The branch head did not advance. Push your commits before releasing.",
				},
			}, nil
		}
	}

	released, err := c.engine.Release(ctx, repo.String(), req.Branch, req.FilePaths, id.UserID)
	if err != nil {
		return nil, err
	}

	orphans := c.orphanedDependencies(ctx, repo, req.Branch, released, req.FilePaths)

	c.sink.Publish(ctx, activity.NewEvents(repo.String(), req.Branch, released,
		datatypes.StatusOpen, id.UserID, id.UserName, req.Message, c.now())...)
	c.log.Info("locks released",
		"repo", repo.String(), "branch", req.Branch,
		"user", id.UserID, "released", len(released), "orphans", len(orphans))

	return &datatypes.PostStatusResponse{
		Success:              true,
		OrphanedDependencies: orphans,
		Orchestration:        proceed("Locks released."),
	}, nil
}

// handleWriting gates an exclusive acquire on head freshness first, then on
// the lock engine.
func (c *Coordinator) handleWriting(ctx context.Context, id Identity, repo remote.Repo, req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	if req.AgentHead == "" {
		return nil, fmt.Errorf("%w: agent_head is required for WRITING", ErrValidation)
	}

	head, err := c.heads.GetHeadCached(ctx, repo, req.Branch, headMaxAge)
	if err != nil {
		return nil, err
	}
	if req.AgentHead != head {
		return &datatypes.PostStatusResponse{
			Success: false,
			Orchestration: datatypes.Orchestration{
				Action:  datatypes.ActionPull,
				Command: datatypes.CommandPullRebase,
				Reason:  staleReason(head),
				Metadata: map[string]string{
					"remote_head": head,
					"your_head":   req.AgentHead,
				},
			},
		}, nil
	}

	return c.acquire(ctx, id, repo, req, datatypes.StatusWriting, req.AgentHead)
}

// handleReading acquires shared-intent holds. There is no staleness gate; a
// missing agent head is backfilled from the remote for record-keeping only.
func (c *Coordinator) handleReading(ctx context.Context, id Identity, repo remote.Repo, req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	agentHead := req.AgentHead
	if agentHead == "" {
		head, err := c.heads.GetHeadCached(ctx, repo, req.Branch, headMaxAge)
		if err != nil {
			return nil, err
		}
		agentHead = head
	}
	return c.acquire(ctx, id, repo, req, datatypes.StatusReading, agentHead)
}

func (c *Coordinator) handleInformational(ctx context.Context, id Identity, repo remote.Repo, req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	c.sink.Publish(ctx, activity.NewEvents(repo.String(), req.Branch, req.FilePaths,
		datatypes.LockStatus(req.Status), id.UserID, id.UserName, req.Message, c.now())...)
	return &datatypes.PostStatusResponse{
		Success:       true,
		Orchestration: proceed("Status recorded."),
	}, nil
}

func (c *Coordinator) acquire(ctx context.Context, id Identity, repo remote.Repo, req datatypes.PostStatusRequest, status datatypes.LockStatus, agentHead string) (*datatypes.PostStatusResponse, error) {
	result, err := c.engine.Acquire(ctx, lock.AcquireRequest{
		Repo:      repo.String(),
		Branch:    req.Branch,
		FilePaths: req.FilePaths,
		UserID:    id.UserID,
		UserName:  id.UserName,
		Status:    status,
		AgentHead: agentHead,
		Message:   req.Message,
	})
	if err != nil {
		return nil, err
	}

	if !result.Success {
		conflict := datatypes.LockEntry{
			FilePath: result.ConflictingFile,
			UserID:   result.ConflictingUser,
			UserName: result.ConflictingUserName,
		}
		return &datatypes.PostStatusResponse{
			Success:       false,
			Orchestration: switchTask(conflict, datatypes.LockKindDirect, ""),
		}, nil
	}

	c.sink.Publish(ctx, activity.NewEvents(repo.String(), req.Branch, req.FilePaths,
		status, id.UserID, id.UserName, req.Message, c.now())...)

	return &datatypes.PostStatusResponse{
		Success:       true,
		Locks:         lockMap(result.Locks),
		Orchestration: proceed("Locks acquired."),
	}, nil
}

// Locks returns the live lock snapshot keyed by path.
func (c *Coordinator) Locks(ctx context.Context, repoURL, branch string) (map[string]datatypes.LockEntry, error) {
	repo, err := canonicalize(repoURL)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		return nil, fmt.Errorf("%w: branch is required", ErrValidation)
	}
	entries, err := c.engine.Snapshot(ctx, repo.String(), branch)
	if err != nil {
		return nil, err
	}
	return lockMap(entries), nil
}

// Graph returns the dependency graph with locks overlaid, rebuilding it
// when the remote moved. force rebuilds unconditionally.
func (c *Coordinator) Graph(ctx context.Context, repoURL, branch string, force bool) (*datatypes.DependencyGraph, error) {
	repo, err := canonicalize(repoURL)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		return nil, fmt.Errorf("%w: branch is required", ErrValidation)
	}
	return c.graphs.Get(ctx, repo, branch, force)
}

// ReleaseAll drops every lock for one (repo, branch) regardless of owner.
func (c *Coordinator) ReleaseAll(ctx context.Context, repoURL, branch string) (int, error) {
	repo, err := canonicalize(repoURL)
	if err != nil {
		return 0, err
	}
	if branch == "" {
		return 0, fmt.Errorf("%w: branch is required", ErrValidation)
	}
	released, err := c.engine.ReleaseAll(ctx, repo.String(), branch)
	if err != nil {
		return 0, err
	}
	c.log.Info("released all locks", "repo", repo.String(), "branch", branch, "released", released)
	return released, nil
}

// Sweep removes expired lock entries across every (repo, branch).
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	return c.engine.Sweep(ctx)
}

// neighborHit is a lock found one import hop away from a requested file.
type neighborHit struct {
	entry     datatypes.LockEntry
	requested string
}

// neighborLock finds the first held lock among the one-hop import neighbors
// of the requested files, walking requested files in request order and each
// file's neighbors lexicographically. graphOK is false when no usable graph
// was stored, which callers surface as a warning.
func (c *Coordinator) neighborLock(ctx context.Context, repo remote.Repo, branch string, requested []string) (*neighborHit, bool, error) {
	g, err := c.graphs.Cached(ctx, repo, branch)
	if err != nil {
		c.log.Debug("no cached graph for neighbor check",
			"repo", repo.String(), "branch", branch, "error", err)
		return nil, false, nil
	}

	reqSet := toSet(requested)
	adjacent := make(map[string][]string)
	for _, e := range g.Edges {
		if _, ok := reqSet[e.Source]; ok {
			if _, alsoReq := reqSet[e.Target]; !alsoReq {
				adjacent[e.Source] = append(adjacent[e.Source], e.Target)
			}
		}
		if _, ok := reqSet[e.Target]; ok {
			if _, alsoReq := reqSet[e.Source]; !alsoReq {
				adjacent[e.Target] = append(adjacent[e.Target], e.Source)
			}
		}
	}

	seen := make(map[string]struct{})
	var probes []string
	nearest := make(map[string]string)
	for _, f := range requested {
		ns := adjacent[f]
		sort.Strings(ns)
		for _, n := range ns {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			probes = append(probes, n)
			nearest[n] = f
		}
	}
	if len(probes) == 0 {
		return nil, true, nil
	}

	held, err := c.engine.Check(ctx, repo.String(), branch, probes)
	if err != nil {
		return nil, true, err
	}
	if len(held) == 0 {
		return nil, true, nil
	}
	return &neighborHit{entry: held[0], requested: nearest[held[0].FilePath]}, true, nil
}

// orphanedDependencies lists files left importing a just-released file.
// Best-effort: without a cached graph the list is empty.
func (c *Coordinator) orphanedDependencies(ctx context.Context, repo remote.Repo, branch string, released, requested []string) []string {
	if len(released) == 0 {
		return nil
	}
	g, err := c.graphs.Cached(ctx, repo, branch)
	if err != nil {
		c.log.Debug("no cached graph for orphan check",
			"repo", repo.String(), "branch", branch, "error", err)
		return nil
	}

	releasedSet := toSet(released)
	requestedSet := toSet(requested)
	seen := make(map[string]struct{})
	var out []string
	for _, e := range g.Edges {
		if _, ok := releasedSet[e.Target]; !ok {
			continue
		}
		if _, ok := requestedSet[e.Source]; ok {
			continue
		}
		if _, dup := seen[e.Source]; dup {
			continue
		}
		seen[e.Source] = struct{}{}
		out = append(out, e.Source)
	}
	sort.Strings(out)
	return out
}

func canonicalize(repoURL string) (remote.Repo, error) {
	repo, err := remote.CanonicalRepo(repoURL)
	if err != nil {
		return remote.Repo{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return repo, nil
}

func validatePaths(branch string, paths []string) error {
	switch {
	case branch == "":
		return fmt.Errorf("%w: branch is required", ErrValidation)
	case len(paths) == 0:
		return fmt.Errorf("%w: file_paths must not be empty", ErrValidation)
	}
	// The branch lands in lock and graph keys; refuse names that would
	// corrupt key scans.
	if err := validation.ValidateBranch(branch); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: file_paths entries must not be blank", ErrValidation)
		}
	}
	return nil
}

func lockMap(entries []datatypes.LockEntry) map[string]datatypes.LockEntry {
	m := make(map[string]datatypes.LockEntry, len(entries))
	for _, e := range entries {
		m[e.FilePath] = e
	}
	return m
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func staleReason(head string) string {
	return "Your local repo is behind. Current HEAD: " + head
}

func proceed(reason string) datatypes.Orchestration {
	return datatypes.Orchestration{Action: datatypes.ActionProceed, Reason: reason}
}

// switchTask shapes the conflict directive. near names the requested file a
// NEIGHBOR conflict was derived from.
func switchTask(e datatypes.LockEntry, kind datatypes.LockKind, near string) datatypes.Orchestration {
	md := map[string]string{
		"conflicting_file": e.FilePath,
		"conflicting_user": e.UserID,
		"lock_kind":        string(kind),
	}
	reason := fmt.Sprintf("%s is locked by %s [%s]", e.FilePath, ownerLabel(e), kind)
	if kind == datatypes.LockKindNeighbor && near != "" {
		md["requested_file"] = near
		reason = fmt.Sprintf("%s is locked by %s [%s of %s]", e.FilePath, ownerLabel(e), kind, near)
	}
	return datatypes.Orchestration{
		Action:   datatypes.ActionSwitchTask,
		Reason:   reason,
		Metadata: md,
	}
}

func ownerLabel(e datatypes.LockEntry) string {
	if e.UserName != "" && e.UserName != e.UserID {
		return e.UserName + " (" + e.UserID + ")"
	}
	return e.UserID
}
