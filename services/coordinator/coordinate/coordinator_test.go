// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/activity"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/kv"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/lock"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
)

var (
	alice = Identity{UserID: "alice", UserName: "Alice"}
	bob   = Identity{UserID: "bob", UserName: "Bob"}
)

type fakeHeads struct {
	head  string
	err   error
	calls int
}

func (f *fakeHeads) GetHeadCached(ctx context.Context, repo remote.Repo, branch string, maxAge time.Duration) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.head, nil
}

type fakeGraphs struct {
	cached    *datatypes.DependencyGraph
	lastForce bool
}

func (f *fakeGraphs) Get(ctx context.Context, repo remote.Repo, branch string, force bool) (*datatypes.DependencyGraph, error) {
	f.lastForce = force
	return f.Cached(ctx, repo, branch)
}

func (f *fakeGraphs) Cached(ctx context.Context, repo remote.Repo, branch string) (*datatypes.DependencyGraph, error) {
	if f.cached == nil {
		return nil, errors.New("graph: no cached graph")
	}
	return f.cached, nil
}

// newTestCoordinator wires a coordinator over a real lock engine backed by
// miniredis, with scripted head and graph collaborators.
func newTestCoordinator(t *testing.T) (*Coordinator, *fakeHeads, *fakeGraphs, *activity.Ring) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := kv.New(context.Background(), kv.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	heads := &fakeHeads{head: "H"}
	graphs := &fakeGraphs{}
	ring := activity.NewRing(64)
	coord := New(lock.NewEngine(store, nil), heads, graphs, ring, nil)
	return coord, heads, graphs, ring
}

func postReq(status string, paths ...string) datatypes.PostStatusRequest {
	return datatypes.PostStatusRequest{
		RepoURL:   "https://github.com/octo/webapp",
		Branch:    "main",
		FilePaths: paths,
		Status:    status,
		Message:   "working on auth",
		AgentHead: "H",
	}
}

func checkReq(paths ...string) datatypes.CheckStatusRequest {
	return datatypes.CheckStatusRequest{
		RepoURL:   "https://github.com/octo/webapp",
		Branch:    "main",
		FilePaths: paths,
		AgentHead: "H",
	}
}

func edgeGraph(edges ...[2]string) *datatypes.DependencyGraph {
	g := &datatypes.DependencyGraph{Version: "H"}
	for _, e := range edges {
		g.Edges = append(g.Edges, datatypes.GraphEdge{
			Source: e[0], Target: e[1], Type: datatypes.EdgeTypeImport,
		})
	}
	return g
}

func TestSoloWritingAcquireThenRelease(t *testing.T) {
	coord, _, graphs, ring := newTestCoordinator(t)
	ctx := context.Background()

	resp, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/a.ts"))
	if err != nil {
		t.Fatalf("writing: %v", err)
	}
	if !resp.Success || resp.Orchestration.Action != datatypes.ActionProceed {
		t.Fatalf("writing outcome = %+v, want success PROCEED", resp)
	}
	entry, ok := resp.Locks["src/a.ts"]
	if !ok || entry.UserID != "alice" || entry.Status != datatypes.StatusWriting {
		t.Errorf("lock entry = %+v, want alice WRITING", entry)
	}

	// Two files import the released one; both become orphan hints.
	graphs.cached = edgeGraph(
		[2]string{"src/api.ts", "src/a.ts"},
		[2]string{"src/ui.ts", "src/a.ts"},
	)

	open := postReq("OPEN", "src/a.ts")
	open.NewRepoHead = "H2"
	resp, err = coord.PostStatus(ctx, alice, open)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !resp.Success || resp.Orchestration.Action != datatypes.ActionProceed {
		t.Fatalf("open outcome = %+v, want success PROCEED", resp)
	}
	wantOrphans := []string{"src/api.ts", "src/ui.ts"}
	if !reflect.DeepEqual(resp.OrphanedDependencies, wantOrphans) {
		t.Errorf("orphans = %v, want %v", resp.OrphanedDependencies, wantOrphans)
	}

	locks, err := coord.Locks(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("locks: %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("locks after release = %v, want none", locks)
	}

	events := ring.Recent("octo/webapp", "main", 0)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != datatypes.EventStatusOpen || events[1].Type != datatypes.EventStatusWriting {
		t.Errorf("event types = %s, %s", events[0].Type, events[1].Type)
	}
}

func TestContentionNamesHolder(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/a.ts")); err != nil {
		t.Fatalf("alice: %v", err)
	}

	resp, err := coord.PostStatus(ctx, bob, postReq("WRITING", "src/a.ts"))
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	if resp.Success {
		t.Fatal("bob succeeded, want conflict")
	}
	if resp.Orchestration.Action != datatypes.ActionSwitchTask {
		t.Errorf("action = %s, want SWITCH_TASK", resp.Orchestration.Action)
	}
	reason := resp.Orchestration.Reason
	if !strings.Contains(reason, "src/a.ts") || !strings.Contains(reason, "alice") {
		t.Errorf("reason = %q, want file and holder named", reason)
	}
	if resp.Orchestration.Metadata["lock_kind"] != string(datatypes.LockKindDirect) {
		t.Errorf("lock_kind = %q, want DIRECT", resp.Orchestration.Metadata["lock_kind"])
	}
}

func TestStaleWriterGetsPull(t *testing.T) {
	coord, heads, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	heads.head = "H_new"
	req := postReq("WRITING", "src/a.ts")
	req.AgentHead = "H_old"

	resp, err := coord.PostStatus(ctx, alice, req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.Success {
		t.Fatal("stale write succeeded, want refusal")
	}
	orch := resp.Orchestration
	if orch.Action != datatypes.ActionPull || orch.Command != datatypes.CommandPullRebase {
		t.Errorf("orchestration = %+v, want PULL git pull --rebase", orch)
	}
	if orch.Metadata["remote_head"] != "H_new" || orch.Metadata["your_head"] != "H_old" {
		t.Errorf("metadata = %v", orch.Metadata)
	}

	locks, err := coord.Locks(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("locks: %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("locks = %v, want none installed on refusal", locks)
	}
}

func TestAtomicMultiFileConflict(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/x.ts", "src/y.ts")); err != nil {
		t.Fatalf("alice: %v", err)
	}

	resp, err := coord.PostStatus(ctx, bob, postReq("WRITING", "src/y.ts", "src/z.ts"))
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	if resp.Success {
		t.Fatal("overlapping acquire succeeded")
	}
	md := resp.Orchestration.Metadata
	if md["conflicting_file"] != "src/y.ts" || md["conflicting_user"] != "alice" {
		t.Errorf("metadata = %v, want y held by alice", md)
	}

	locks, err := coord.Locks(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("locks: %v", err)
	}
	if _, leaked := locks["src/z.ts"]; leaked {
		t.Error("src/z.ts locked despite refused batch")
	}
	if len(locks) != 2 {
		t.Errorf("locks = %d entries, want alice's 2", len(locks))
	}
}

func TestOpenRefusedWhenBranchDidNotAdvance(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/a.ts")); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	open := postReq("OPEN", "src/a.ts")
	open.NewRepoHead = "H" // same as AgentHead: nothing was pushed
	resp, err := coord.PostStatus(ctx, alice, open)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if resp.Success {
		t.Fatal("unpushed release succeeded, want PUSH refusal")
	}
	if resp.Orchestration.Action != datatypes.ActionPush || resp.Orchestration.Command != datatypes.CommandPush {
		t.Errorf("orchestration = %+v, want PUSH git push", resp.Orchestration)
	}

	locks, err := coord.Locks(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("locks: %v", err)
	}
	if _, held := locks["src/a.ts"]; !held {
		t.Error("lock released despite refusal")
	}
}

func TestOpenWithNewHeadRequiresAgentHead(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	open := postReq("OPEN", "src/a.ts")
	open.AgentHead = ""
	open.NewRepoHead = "H2"
	_, err := coord.PostStatus(context.Background(), alice, open)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestWritingRequiresAgentHead(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	req := postReq("WRITING", "src/a.ts")
	req.AgentHead = ""
	_, err := coord.PostStatus(context.Background(), alice, req)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestReadingBackfillsAgentHead(t *testing.T) {
	coord, heads, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	heads.head = "H9"
	req := postReq("READING", "src/a.ts")
	req.AgentHead = ""

	resp, err := coord.PostStatus(ctx, alice, req)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if !resp.Success {
		t.Fatalf("outcome = %+v, want success", resp)
	}

	locks, err := coord.Locks(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("locks: %v", err)
	}
	if locks["src/a.ts"].AgentHead != "H9" {
		t.Errorf("recorded head = %q, want backfilled H9", locks["src/a.ts"].AgentHead)
	}
}

func TestReadingSkipsStaleGate(t *testing.T) {
	coord, heads, _, _ := newTestCoordinator(t)
	heads.head = "H_new"

	req := postReq("READING", "src/a.ts")
	req.AgentHead = "H_old"
	resp, err := coord.PostStatus(context.Background(), alice, req)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if !resp.Success {
		t.Errorf("outcome = %+v, want success despite stale head", resp)
	}
	// The provided head is recorded verbatim; no remote call happens.
	if heads.calls != 0 {
		t.Errorf("head lookups = %d, want 0", heads.calls)
	}
}

func TestReadingConflictsWithWriter(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/a.ts")); err != nil {
		t.Fatalf("alice: %v", err)
	}
	resp, err := coord.PostStatus(ctx, bob, postReq("READING", "src/a.ts"))
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	if resp.Success || resp.Orchestration.Action != datatypes.ActionSwitchTask {
		t.Errorf("outcome = %+v, want SWITCH_TASK", resp)
	}
}

func TestInformationalStatusRecorded(t *testing.T) {
	coord, _, _, ring := newTestCoordinator(t)

	resp, err := coord.PostStatus(context.Background(), alice, postReq("BLOCKED", "src/a.ts"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !resp.Success || resp.Orchestration.Action != datatypes.ActionProceed {
		t.Errorf("outcome = %+v, want success PROCEED", resp)
	}
	if len(resp.Locks) != 0 {
		t.Errorf("locks = %v, want none for informational status", resp.Locks)
	}

	events := ring.Recent("octo/webapp", "main", 0)
	if len(events) != 1 || events[0].Type != "status_blocked" {
		t.Errorf("events = %v, want one status_blocked", events)
	}
}

func TestCheckStatusStale(t *testing.T) {
	coord, heads, _, _ := newTestCoordinator(t)
	heads.head = "H_new"

	req := checkReq("src/a.ts")
	req.AgentHead = "H_old"
	resp, err := coord.CheckStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != datatypes.CoordinationStale {
		t.Errorf("status = %s, want STALE", resp.Status)
	}
	orch := resp.Orchestration
	if orch.Action != datatypes.ActionPull || orch.Command != datatypes.CommandPullRebase {
		t.Errorf("orchestration = %+v", orch)
	}
	if !strings.Contains(orch.Reason, "H_new") {
		t.Errorf("reason = %q, want current head named", orch.Reason)
	}
	if resp.RepoHead != "H_new" {
		t.Errorf("repo head = %q", resp.RepoHead)
	}
}

func TestCheckStatusDirectConflict(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/a.ts")); err != nil {
		t.Fatalf("alice: %v", err)
	}

	resp, err := coord.CheckStatus(ctx, checkReq("src/a.ts", "src/other.ts"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != datatypes.CoordinationConflict {
		t.Errorf("status = %s, want CONFLICT", resp.Status)
	}
	if resp.Orchestration.Metadata["lock_kind"] != string(datatypes.LockKindDirect) {
		t.Errorf("lock_kind = %q, want DIRECT", resp.Orchestration.Metadata["lock_kind"])
	}
	if _, ok := resp.Locks["src/a.ts"]; !ok {
		t.Errorf("locks = %v, want src/a.ts present", resp.Locks)
	}
}

func TestCheckStatusNeighborConflict(t *testing.T) {
	coord, _, graphs, _ := newTestCoordinator(t)
	ctx := context.Background()

	// src/b.ts imports src/a.ts, so b is a one-hop neighbor of a.
	graphs.cached = edgeGraph([2]string{"src/b.ts", "src/a.ts"})
	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/b.ts")); err != nil {
		t.Fatalf("alice: %v", err)
	}

	resp, err := coord.CheckStatus(ctx, checkReq("src/a.ts"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != datatypes.CoordinationConflict {
		t.Fatalf("status = %s, want CONFLICT", resp.Status)
	}
	md := resp.Orchestration.Metadata
	if md["lock_kind"] != string(datatypes.LockKindNeighbor) {
		t.Errorf("lock_kind = %q, want NEIGHBOR", md["lock_kind"])
	}
	if md["conflicting_file"] != "src/b.ts" || md["requested_file"] != "src/a.ts" {
		t.Errorf("metadata = %v", md)
	}
	// The direct lock map stays scoped to the requested files.
	if len(resp.Locks) != 0 {
		t.Errorf("locks = %v, want empty", resp.Locks)
	}
}

func TestCheckStatusWarnsWithoutGraph(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	resp, err := coord.CheckStatus(context.Background(), checkReq("src/a.ts"))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != datatypes.CoordinationOK || resp.Orchestration.Action != datatypes.ActionProceed {
		t.Errorf("outcome = %+v, want OK PROCEED", resp)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("warnings = %v, want neighbor-check warning", resp.Warnings)
	}
}

func TestCheckStatusValidation(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  datatypes.CheckStatusRequest
	}{
		{"missing agent head", datatypes.CheckStatusRequest{RepoURL: "octo/webapp", Branch: "main", FilePaths: []string{"a.ts"}}},
		{"empty paths", datatypes.CheckStatusRequest{RepoURL: "octo/webapp", Branch: "main", AgentHead: "H"}},
		{"blank path entry", datatypes.CheckStatusRequest{RepoURL: "octo/webapp", Branch: "main", FilePaths: []string{"  "}, AgentHead: "H"}},
		{"missing branch", datatypes.CheckStatusRequest{RepoURL: "octo/webapp", FilePaths: []string{"a.ts"}, AgentHead: "H"}},
		{"malformed repo", datatypes.CheckStatusRequest{RepoURL: "justaname", Branch: "main", FilePaths: []string{"a.ts"}, AgentHead: "H"}},
		{"glob branch", datatypes.CheckStatusRequest{RepoURL: "octo/webapp", Branch: "feat/*", FilePaths: []string{"a.ts"}, AgentHead: "H"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := coord.CheckStatus(ctx, tc.req); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestPostStatusRequiresIdentity(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.PostStatus(context.Background(), Identity{}, postReq("WRITING", "src/a.ts"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestPostStatusRejectsUnsafeUserID(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	id := Identity{UserID: "agent 7; rm -rf", UserName: "Agent"}
	_, err := coord.PostStatus(context.Background(), id, postReq("WRITING", "src/a.ts"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestQuotaErrorPassesThrough(t *testing.T) {
	coord, heads, _, _ := newTestCoordinator(t)
	heads.err = &remote.QuotaError{ResetAt: time.Now().Add(time.Minute)}

	_, err := coord.CheckStatus(context.Background(), checkReq("src/a.ts"))
	var qe *remote.QuotaError
	if !errors.As(err, &qe) {
		t.Errorf("err = %v, want QuotaError", err)
	}
}

func TestReleaseAll(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.PostStatus(ctx, alice, postReq("WRITING", "src/x.ts", "src/y.ts")); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	released, err := coord.ReleaseAll(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("release all: %v", err)
	}
	if released != 2 {
		t.Errorf("released = %d, want 2", released)
	}
	locks, err := coord.Locks(ctx, "octo/webapp", "main")
	if err != nil {
		t.Fatalf("locks: %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("locks = %v, want none", locks)
	}
}

func TestGraphPassesForceThrough(t *testing.T) {
	coord, _, graphs, _ := newTestCoordinator(t)
	graphs.cached = edgeGraph()

	if _, err := coord.Graph(context.Background(), "octo/webapp", "main", true); err != nil {
		t.Fatalf("graph: %v", err)
	}
	if !graphs.lastForce {
		t.Error("force flag not forwarded")
	}
}
