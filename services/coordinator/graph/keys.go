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

// Every persisted key is scoped to one (repo, branch) pair. The repo part
// is the canonical Owner/Repo form, so a repository referenced by URL and
// by short name lands on the same state.

// graphKey holds the serialized structural graph.
func graphKey(repo, branch string) string {
	return "graph:" + repo + ":" + branch
}

// metaKey holds the commit id the stored graph was built against. It is
// readable without deserializing the blob.
func metaKey(repo, branch string) string {
	return "graph:meta:" + repo + ":" + branch
}

// shasKey holds the file path to blob sha hash for the stored graph.
func shasKey(repo, branch string) string {
	return "graph:file_shas:" + repo + ":" + branch
}

// contentsKey holds the content-addressed blob cache, sha to text.
func contentsKey(repo, branch string) string {
	return "graph:file_contents:" + repo + ":" + branch
}

// headCheckedKey holds the epoch-ms timestamp of the last remote head
// lookup, shared across coordinator replicas.
func headCheckedKey(repo, branch string) string {
	return "graph:head_checked_at:" + repo + ":" + branch
}

// rateLimitedKey holds the epoch-ms timestamp until which remote traffic
// for this pair is suspended.
func rateLimitedKey(repo, branch string) string {
	return "graph:rate_limited_until:" + repo + ":" + branch
}
