// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package remote adapts the upstream Git hosting API for the coordinator.
//
// # Description
//
// The coordinator never talks to Git itself. Everything it knows about a
// repository comes through this package: branch heads, recursive tree
// listings, and blob content addressed by content sha. The production
// implementation speaks the GitHub REST v3 API; tests substitute fakes
// behind the Client interface.
//
// Quota exhaustion is a first-class outcome. Callers distinguish it from
// other failures with errors.As against *QuotaError and decide between
// failing the request and serving stale data.
package remote

import (
	"context"
	"time"
)

// Repo is a canonical repository identity: lower-case owner and name with
// any .git suffix stripped. Build one with CanonicalRepo, never by hand from
// raw caller input.
type Repo struct {
	Owner string
	Name  string
}

// String returns the canonical "owner/name" key used for all persisted state.
func (r Repo) String() string { return r.Owner + "/" + r.Name }

// TreeEntry is one blob in a recursive tree listing.
type TreeEntry struct {
	// Path is repo-relative with forward slashes.
	Path string

	// SHA is the content-addressed blob id. Identical content yields an
	// identical sha regardless of path or commit.
	SHA string

	// Size is the blob size in bytes.
	Size int64
}

// Tree is a flat listing of every blob reachable from one commit.
type Tree struct {
	// SHA identifies the tree object itself.
	SHA string

	// Entries holds blobs only. Subtrees are already flattened.
	Entries []TreeEntry

	// Truncated is set when the upstream cut the listing short. The
	// listing is still usable but incomplete.
	Truncated bool
}

// Client is the remote surface the graph builder and the coordination API
// are written against.
type Client interface {
	// GetHead returns the commit id at the tip of branch.
	GetHead(ctx context.Context, repo Repo, branch string) (string, error)

	// GetHeadCached returns the head from the in-process cache when the
	// cached value is younger than maxAge, otherwise refreshes it from the
	// remote. A maxAge of zero always refreshes.
	GetHeadCached(ctx context.Context, repo Repo, branch string, maxAge time.Duration) (string, error)

	// GetTreeRecursive lists every blob reachable from the given commit.
	GetTreeRecursive(ctx context.Context, repo Repo, commitSHA string) (*Tree, error)

	// GetFileContent fetches one blob as UTF-8 text. The path is carried
	// for error context only; the fetch is addressed by sha. Oversized and
	// non-text blobs fail with an error matching ErrContentSkipped.
	GetFileContent(ctx context.Context, repo Repo, path, blobSHA string) (string, error)
}
