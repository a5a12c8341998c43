// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// NodeTypeFile is the only node type the graph currently carries.
const NodeTypeFile = "file"

// EdgeTypeImport is the only edge type the graph currently carries.
const EdgeTypeImport = "import"

// GraphNode is one file in the dependency graph.
type GraphNode struct {
	// ID is the repo-relative file path.
	ID string `json:"id"`

	// Type is always NodeTypeFile.
	Type string `json:"type"`

	// Size is the blob size in bytes as reported by the remote tree.
	Size int64 `json:"size,omitempty"`

	// Language is ts, js, or py, derived from the file extension.
	Language string `json:"language,omitempty"`
}

// GraphEdge is a directed import relation: Source imports Target.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`

	// Type is always EdgeTypeImport.
	Type string `json:"type"`
}

// GraphMetadata describes the build that produced the structural graph.
type GraphMetadata struct {
	// GeneratedAt is the build completion time, RFC 3339.
	GeneratedAt string `json:"generated_at"`

	// FilesProcessed counts files whose content was parsed in this build.
	// A cache-served read reports the number from the producing build.
	FilesProcessed int `json:"files_processed"`

	// EdgesFound is the total edge count after the build.
	EdgesFound int `json:"edges_found"`
}

// DependencyGraph is the file-import graph of one (repo, branch).
//
// # Description
//
// Nodes and Edges are the structural part, persisted as one blob and sorted
// deterministically (nodes by id, edges by source then target) so identical
// inputs serialize identically. Version is the commit id the structure was
// last reconciled against.
//
// Locks are never part of the persisted blob. Every read path overlays them
// fresh from the lock engine, so the map reflects the moment of the read, not
// the moment of the build.
type DependencyGraph struct {
	Nodes    []GraphNode          `json:"nodes"`
	Edges    []GraphEdge          `json:"edges"`
	Locks    map[string]LockEntry `json:"locks"`
	Version  string               `json:"version"`
	Metadata GraphMetadata        `json:"metadata"`
}
