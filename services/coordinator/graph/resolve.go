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
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// resolveCacheSize bounds the per-build resolution cache. Large repos
// re-resolve the same (file, module) pairs across helper files constantly.
const resolveCacheSize = 4096

// probeExts is the candidate order for a normalized target X. The first
// existing candidate wins.
var probeExts = []string{".ts", ".tsx", ".js", ".jsx", ".py"}

// probeIndexes is tried after the direct extensions.
var probeIndexes = []string{"/index.ts", "/index.tsx", "/index.js", "/index.jsx"}

type resolveKey struct {
	file   string
	module string
}

// resolver maps module strings onto tree paths for one build.
//
// # Description
//
// Only relative modules resolve; bare specifiers are external packages and
// never become edges. The cache is scoped to a single build because
// resolution depends on the file set, which changes between commits.
//
// # Thread Safety
//
// Not safe for concurrent use. Each build owns its resolver.
type resolver struct {
	files map[string]struct{}
	cache *lru.Cache[resolveKey, string]
}

func newResolver(files map[string]struct{}) (*resolver, error) {
	cache, err := lru.New[resolveKey, string](resolveCacheSize)
	if err != nil {
		return nil, err
	}
	return &resolver{files: files, cache: cache}, nil
}

// resolve returns the tree path the module refers to when imported from
// file, or "" when the module is external, escapes the tree, or matches no
// candidate.
func (r *resolver) resolve(file, module string) string {
	if module == "" {
		return ""
	}
	if !strings.HasPrefix(module, ".") && !strings.HasPrefix(module, "/") {
		return ""
	}
	key := resolveKey{file: file, module: module}
	if hit, ok := r.cache.Get(key); ok {
		return hit
	}
	resolved := r.probe(normalizeTarget(file, module))
	r.cache.Add(key, resolved)
	return resolved
}

func (r *resolver) probe(target string) string {
	if target == "" {
		return ""
	}
	for _, ext := range probeExts {
		if _, ok := r.files[target+ext]; ok {
			return target + ext
		}
	}
	for _, idx := range probeIndexes {
		if _, ok := r.files[target+idx]; ok {
			return target + idx
		}
	}
	return ""
}

// normalizeTarget applies the module's dot segments against the importing
// file's directory. A leading slash anchors at the repo root. Targets that
// escape the tree normalize to "".
func normalizeTarget(file, module string) string {
	var joined string
	if strings.HasPrefix(module, "/") {
		joined = path.Clean(strings.TrimPrefix(module, "/"))
	} else {
		joined = path.Join(path.Dir(file), module)
	}
	if joined == "." || joined == ".." || strings.HasPrefix(joined, "../") {
		return ""
	}
	return joined
}
