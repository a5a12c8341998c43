// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSwarm/pkg/ux"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

func runGraph(cmd *cobra.Command, args []string) {
	repo := resolveRepo()
	branch := resolveBranch()

	var graph *datatypes.DependencyGraph
	fetch := func() error {
		var err error
		graph, err = fetchGraph(repo, branch, graphRebuild)
		return err
	}

	var err error
	if graphRebuild {
		// A forced rebuild refetches the whole remote tree; give the user
		// something to look at.
		err = ux.WithSpinner(fmt.Sprintf("Rebuilding graph for %s @ %s", repo, branch), fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read graph: %v", err))
		os.Exit(CLIExitError)
	}

	if graphJSON {
		if err := outputJSON(graph); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	renderGraphSummary(repo, branch, graph)
}

// renderGraphSummary prints the headline numbers and the most-imported
// files. The full structure is available with --json.
func renderGraphSummary(repo, branch string, graph *datatypes.DependencyGraph) {
	ux.Title(fmt.Sprintf("Dependency graph %s @ %s", repo, branch))
	ux.Info(fmt.Sprintf("%d files, %d imports, version %s",
		len(graph.Nodes), len(graph.Edges), shortHead(graph.Version)))
	if graph.Metadata.GeneratedAt != "" {
		ux.Muted(fmt.Sprintf("generated %s, %d files parsed",
			graph.Metadata.GeneratedAt, graph.Metadata.FilesProcessed))
	}

	if hot := mostImported(graph, 5); len(hot) > 0 {
		ux.Info("Most imported:")
		for _, entry := range hot {
			ux.FileStatus(entry.path, ux.IconArrow,
				fmt.Sprintf("%d importers", entry.count))
		}
	}

	if len(graph.Locks) > 0 {
		ux.Info("Currently held:")
		renderLocks(graph.Locks)
	}
}

type importCount struct {
	path  string
	count int
}

// mostImported returns up to n files by importer count, descending. Ties
// break alphabetically so output is stable.
func mostImported(graph *datatypes.DependencyGraph, n int) []importCount {
	counts := make(map[string]int)
	for _, edge := range graph.Edges {
		counts[edge.Target]++
	}

	out := make([]importCount, 0, len(counts))
	for path, count := range counts {
		out = append(out, importCount{path: path, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].path < out[j].path
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}
