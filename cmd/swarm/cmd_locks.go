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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSwarm/pkg/ux"
)

func runLocks(cmd *cobra.Command, args []string) {
	repo := resolveRepo()
	branch := resolveBranch()

	resp, err := fetchLocks(repo, branch)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read locks: %v", err))
		os.Exit(CLIExitError)
	}

	if locksJSON {
		if err := outputJSON(resp); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	ux.Title(fmt.Sprintf("Locks on %s @ %s", repo, branch))
	renderLocks(resp.Locks)
}

func runActivity(cmd *cobra.Command, args []string) {
	// Repo and branch narrow the feed but are not required; an observer
	// may watch everything.
	repo := repoFlag
	if repo == "" {
		repo = os.Getenv("SWARM_REPO")
	}
	if repo == "" {
		repo = config.Repo
	}
	branch := branchFlag
	if branch == "" {
		branch = config.Branch
	}

	resp, err := fetchActivity(repo, branch, activityLimit)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read activity: %v", err))
		os.Exit(CLIExitError)
	}

	if activityJSON {
		if err := outputJSON(resp); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	if len(resp.Events) == 0 {
		ux.Muted("No recent activity.")
		return
	}
	for _, event := range resp.Events {
		renderEvent(event)
	}
}
