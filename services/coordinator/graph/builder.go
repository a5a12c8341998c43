// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/kv"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
)

// buildMode records which diff path produced a graph.
type buildMode string

const (
	buildFull        buildMode = "full"
	buildIncremental buildMode = "incremental"
)

// treeDiff is the second diff layer: the stored sha map against the tree
// at the new head.
type treeDiff struct {
	added     []string
	changed   []string
	deleted   []string
	unchanged int
}

func diffShas(old, new map[string]string) treeDiff {
	var d treeDiff
	for p, sha := range new {
		prev, ok := old[p]
		switch {
		case !ok:
			d.added = append(d.added, p)
		case prev != sha:
			d.changed = append(d.changed, p)
		default:
			d.unchanged++
		}
	}
	for p := range old {
		if _, ok := new[p]; !ok {
			d.deleted = append(d.deleted, p)
		}
	}
	sort.Strings(d.added)
	sort.Strings(d.changed)
	sort.Strings(d.deleted)
	return d
}

// rebuild fetches the tree at head, diffs it against the stored sha map,
// reparses what moved, and persists the result in one batch.
//
// # Description
//
// An incremental pass reparses only changed files and splices their edges
// into the stored graph. Three conditions force a full pass instead: any
// added file (it may now satisfy imports that previously resolved to
// nothing), a missing or corrupt stored graph alongside a non-empty sha
// map, and a first build. Either way the node set is rebuilt from the tree,
// so the two paths converge on identical output for identical remote state.
//
// Nothing is persisted until the build succeeds, so a failed build leaves
// the previous graph fully intact.
func (s *Service) rebuild(ctx context.Context, repo remote.Repo, branch, head string) (*datatypes.DependencyGraph, error) {
	ctx, span := tracer.Start(ctx, "graph.rebuild")
	defer span.End()
	start := time.Now()

	rkey := repo.String()
	oldShas, err := s.store.HGetAll(ctx, shasKey(rkey, branch))
	if err != nil {
		return nil, fmt.Errorf("load sha map: %w", err)
	}

	tree, err := s.remote.GetTreeRecursive(ctx, repo, head)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]remote.TreeEntry)
	newShas := make(map[string]string)
	for _, e := range tree.Entries {
		if _, ok := LanguageOf(e.Path); !ok {
			continue
		}
		entries[e.Path] = e
		newShas[e.Path] = e.SHA
	}

	diff := diffShas(oldShas, newShas)
	oldGraph, oldGraphOK := s.loadStored(ctx, rkey, branch)
	storedVersion := ""
	if v, verr := s.store.Get(ctx, metaKey(rkey, branch)); verr == nil {
		storedVersion = v
	}

	// Incremental splicing is only sound against a complete prior state.
	mode := buildIncremental
	switch {
	case len(oldShas) == 0, storedVersion == "", !oldGraphOK, len(diff.added) > 0:
		mode = buildFull
	}

	var parseSet []string
	if mode == buildFull {
		parseSet = make([]string, 0, len(newShas))
		for p := range newShas {
			parseSet = append(parseSet, p)
		}
		sort.Strings(parseSet)
	} else {
		parseSet = diff.changed
	}

	contents, fetched, err := s.loadContents(ctx, repo, rkey, branch, parseSet, newShas)
	if err != nil {
		observeBuild(ctx, mode, start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g, err := assemble(entries, parseSet, contents, oldGraph, mode, diff, head)
	if err != nil {
		observeBuild(ctx, mode, start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	g.Metadata = datatypes.GraphMetadata{
		GeneratedAt:    s.now().UTC().Format(time.RFC3339),
		FilesProcessed: len(parseSet),
		EdgesFound:     len(g.Edges),
	}

	if err := s.persist(ctx, rkey, branch, g, oldShas, newShas, diff, fetched); err != nil {
		observeBuild(ctx, mode, start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	observeBuild(ctx, mode, start, nil)
	span.SetAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("files", len(entries)),
		attribute.Int("parsed", len(parseSet)),
		attribute.Int("edges", len(g.Edges)),
	)
	s.log.Info("graph rebuilt",
		"repo", rkey,
		"branch", branch,
		"mode", string(mode),
		"head", head,
		"files", len(entries),
		"parsed", len(parseSet),
		"unchanged", diff.unchanged,
		"edges", len(g.Edges),
	)
	return g, nil
}

// loadContents returns the text of every file in parseSet, reusing the
// content-addressed cache before touching the remote. Blobs the remote
// refuses to serve as text map to "" and are remembered that way, so they
// are not refetched on every build. Fetched holds the sha-to-text pairs
// that must be written back.
func (s *Service) loadContents(ctx context.Context, repo remote.Repo, rkey, branch string, parseSet []string, shas map[string]string) (map[string]string, map[string]string, error) {
	contents := make(map[string]string, len(parseSet))
	fetched := make(map[string]string)
	for _, p := range parseSet {
		sha := shas[p]
		if text, ok := fetched[sha]; ok {
			contents[p] = text
			continue
		}
		text, err := s.store.HGet(ctx, contentsKey(rkey, branch), sha)
		if err == nil {
			contents[p] = text
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return nil, nil, fmt.Errorf("read content cache: %w", err)
		}
		text, err = s.remote.GetFileContent(ctx, repo, p, sha)
		if err != nil {
			if errors.Is(err, remote.ErrContentSkipped) {
				s.log.Info("skipping unparseable blob", "path", p, "reason", err)
				contents[p] = ""
				fetched[sha] = ""
				continue
			}
			return nil, nil, err
		}
		contents[p] = text
		fetched[sha] = text
	}
	return contents, fetched, nil
}

// assemble produces the structural graph. The node set always comes from
// the new tree. Edges come from reparsing parseSet; on an incremental pass
// the stored edges survive unless their source was reparsed or either end
// was deleted.
func assemble(entries map[string]remote.TreeEntry, parseSet []string, contents map[string]string, oldGraph *datatypes.DependencyGraph, mode buildMode, diff treeDiff, head string) (*datatypes.DependencyGraph, error) {
	files := make(map[string]struct{}, len(entries))
	for p := range entries {
		files[p] = struct{}{}
	}
	res, err := newResolver(files)
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}

	parsed := make(map[string]struct{}, len(parseSet))
	for _, p := range parseSet {
		parsed[p] = struct{}{}
	}
	gone := make(map[string]struct{}, len(diff.deleted))
	for _, p := range diff.deleted {
		gone[p] = struct{}{}
	}

	edges := make(map[[2]string]datatypes.GraphEdge)
	if mode == buildIncremental && oldGraph != nil {
		for _, e := range oldGraph.Edges {
			if _, ok := parsed[e.Source]; ok {
				continue
			}
			if _, ok := gone[e.Source]; ok {
				continue
			}
			if _, ok := gone[e.Target]; ok {
				continue
			}
			edges[[2]string{e.Source, e.Target}] = e
		}
	}
	for _, p := range parseSet {
		lang, _ := LanguageOf(p)
		for _, mod := range ExtractImports(contents[p], lang) {
			target := res.resolve(p, mod)
			if target == "" || target == p {
				continue
			}
			key := [2]string{p, target}
			edges[key] = datatypes.GraphEdge{Source: p, Target: target, Type: datatypes.EdgeTypeImport}
		}
	}

	nodes := make([]datatypes.GraphNode, 0, len(entries))
	for p, e := range entries {
		lang, _ := LanguageOf(p)
		nodes = append(nodes, datatypes.GraphNode{
			ID:       p,
			Type:     datatypes.NodeTypeFile,
			Size:     e.Size,
			Language: lang,
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edgeList := make([]datatypes.GraphEdge, 0, len(edges))
	for _, e := range edges {
		edgeList = append(edgeList, e)
	}
	sort.Slice(edgeList, func(i, j int) bool {
		if edgeList[i].Source != edgeList[j].Source {
			return edgeList[i].Source < edgeList[j].Source
		}
		return edgeList[i].Target < edgeList[j].Target
	})

	return &datatypes.DependencyGraph{
		Nodes:   nodes,
		Edges:   edgeList,
		Version: head,
	}, nil
}

// persist writes the graph blob, version, sha map delta, and content cache
// delta in one batch, so a reader never observes a half-applied build.
// Content entries no other path references anymore are evicted in the same
// batch.
func (s *Service) persist(ctx context.Context, rkey, branch string, g *datatypes.DependencyGraph, oldShas, newShas map[string]string, diff treeDiff, fetched map[string]string) error {
	blob, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	live := make(map[string]struct{}, len(newShas))
	for _, sha := range newShas {
		live[sha] = struct{}{}
	}
	evict := make(map[string]struct{})
	for p, prev := range oldShas {
		if newShas[p] == prev {
			continue
		}
		if _, ok := live[prev]; ok {
			continue
		}
		evict[prev] = struct{}{}
	}
	evicted := make([]string, 0, len(evict))
	for sha := range evict {
		evicted = append(evicted, sha)
	}
	sort.Strings(evicted)

	return s.store.Pipelined(ctx, func(pipe kv.Pipeliner) error {
		pipe.Set(graphKey(rkey, branch), string(blob), 0)
		pipe.Set(metaKey(rkey, branch), g.Version, 0)
		for p, sha := range newShas {
			if oldShas[p] != sha {
				pipe.HSet(shasKey(rkey, branch), p, sha)
			}
		}
		if len(diff.deleted) > 0 {
			pipe.HDel(shasKey(rkey, branch), diff.deleted...)
		}
		for sha, text := range fetched {
			pipe.HSet(contentsKey(rkey, branch), sha, text)
		}
		if len(evicted) > 0 {
			pipe.HDel(contentsKey(rkey, branch), evicted...)
		}
		return nil
	})
}
