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

import "testing"

func newTestResolver(t *testing.T, paths ...string) *resolver {
	t.Helper()

	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		files[p] = struct{}{}
	}
	r, err := newResolver(files)
	if err != nil {
		t.Fatalf("newResolver: %v", err)
	}
	return r
}

func TestResolveRelativeSibling(t *testing.T) {
	r := newTestResolver(t, "src/a.ts", "src/b.ts")

	if got := r.resolve("src/a.ts", "./b"); got != "src/b.ts" {
		t.Errorf("got %q, want src/b.ts", got)
	}
}

func TestResolveParentTraversal(t *testing.T) {
	r := newTestResolver(t, "src/deep/a.ts", "lib/util.js")

	if got := r.resolve("src/deep/a.ts", "../../lib/util"); got != "lib/util.js" {
		t.Errorf("got %q, want lib/util.js", got)
	}
}

func TestResolveProbeOrder(t *testing.T) {
	// Both b.tsx and b.js exist; .tsx wins because it probes earlier.
	r := newTestResolver(t, "src/a.ts", "src/b.tsx", "src/b.js")

	if got := r.resolve("src/a.ts", "./b"); got != "src/b.tsx" {
		t.Errorf("got %q, want src/b.tsx", got)
	}
}

func TestResolveIndexFallback(t *testing.T) {
	r := newTestResolver(t, "src/a.ts", "src/widgets/index.ts")

	if got := r.resolve("src/a.ts", "./widgets"); got != "src/widgets/index.ts" {
		t.Errorf("got %q, want src/widgets/index.ts", got)
	}
}

func TestResolveDirectBeatsIndex(t *testing.T) {
	r := newTestResolver(t, "src/a.ts", "src/widgets.py", "src/widgets/index.ts")

	if got := r.resolve("src/a.ts", "./widgets"); got != "src/widgets.py" {
		t.Errorf("got %q, want src/widgets.py", got)
	}
}

func TestResolveRootAnchored(t *testing.T) {
	r := newTestResolver(t, "src/deep/a.ts", "shared/types.ts")

	if got := r.resolve("src/deep/a.ts", "/shared/types"); got != "shared/types.ts" {
		t.Errorf("got %q, want shared/types.ts", got)
	}
}

func TestResolveBareSpecifierIsExternal(t *testing.T) {
	r := newTestResolver(t, "src/a.ts", "src/react.ts")

	if got := r.resolve("src/a.ts", "react"); got != "" {
		t.Errorf("got %q, want no resolution for a bare specifier", got)
	}
}

func TestResolveEscapingTree(t *testing.T) {
	r := newTestResolver(t, "a.ts", "b.ts")

	if got := r.resolve("a.ts", "../outside"); got != "" {
		t.Errorf("got %q, want no resolution outside the tree", got)
	}
}

func TestResolveMissingTarget(t *testing.T) {
	r := newTestResolver(t, "src/a.ts")

	if got := r.resolve("src/a.ts", "./nope"); got != "" {
		t.Errorf("got %q, want no resolution", got)
	}
}

func TestResolvePythonDottedModuleStaysExternal(t *testing.T) {
	// Dotted python relatives are not path-shaped and never probe to a file.
	r := newTestResolver(t, "pkg/a.py", "pkg/utils.py")

	if got := r.resolve("pkg/a.py", ".utils"); got != "" {
		t.Errorf("got %q, want no resolution", got)
	}
}

func TestResolveCachesPerPair(t *testing.T) {
	r := newTestResolver(t, "src/a.ts", "src/b.ts")

	first := r.resolve("src/a.ts", "./b")
	// Mutating the file set after the first lookup must not change the
	// answer for the same pair within one build.
	delete(r.files, "src/b.ts")
	second := r.resolve("src/a.ts", "./b")
	if first != second || second != "src/b.ts" {
		t.Errorf("got %q then %q, want stable src/b.ts", first, second)
	}
}
