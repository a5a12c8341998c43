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
	"regexp"
	"strings"
)

// extLanguage maps the file extensions the builder parses to their short
// language codes. Files outside this map never become graph nodes.
var extLanguage = map[string]string{
	".ts":  "ts",
	".tsx": "ts",
	".js":  "js",
	".jsx": "js",
	".py":  "py",
}

// LanguageOf reports the language code for a repo path and whether the
// path participates in the graph at all.
func LanguageOf(p string) (string, bool) {
	lang, ok := extLanguage[strings.ToLower(path.Ext(p))]
	return lang, ok
}

// The extraction is lexical, not syntactic. Line-level comment skipping
// keeps commented-out imports from producing edges; a full parse is not
// worth the cost for advisory coordination.
var (
	// import defaultExport from "mod" / import { a, b } from "mod" /
	// export * from "mod" / import "mod"
	jsImportRe = regexp.MustCompile(`(?:import|export)\s+(?:[\w{}*,\s$]+\s+from\s+)?['"]([^'"]+)['"]`)

	// require("mod")
	jsRequireRe = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	// import("mod")
	jsDynamicRe = regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	// import mod / import mod.sub
	pyImportRe = regexp.MustCompile(`^\s*import\s+([\w.]+)`)

	// from mod import name
	pyFromRe = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`)
)

// ExtractImports returns the module strings referenced by source, in order
// of first appearance, without duplicates. The module strings are raw: the
// resolver decides which of them land inside the repository.
func ExtractImports(source, language string) []string {
	var patterns []*regexp.Regexp
	switch language {
	case "ts", "js":
		patterns = []*regexp.Regexp{jsImportRe, jsRequireRe, jsDynamicRe}
	case "py":
		patterns = []*regexp.Regexp{pyImportRe, pyFromRe}
	default:
		return nil
	}

	var (
		modules []string
		seen    map[string]struct{}
	)
	for _, line := range strings.Split(source, "\n") {
		if skipLine(line) {
			continue
		}
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				mod := m[1]
				if mod == "" {
					continue
				}
				if _, dup := seen[mod]; dup {
					continue
				}
				if seen == nil {
					seen = make(map[string]struct{})
				}
				seen[mod] = struct{}{}
				modules = append(modules, mod)
			}
		}
	}
	return modules
}

// skipLine drops comment lines. The continuation marker "*" also covers
// the interior of block comments written in the conventional style.
func skipLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") ||
		strings.HasPrefix(t, "#") ||
		strings.HasPrefix(t, "/*") ||
		strings.HasPrefix(t, "*")
}
