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

func runReleaseAll(cmd *cobra.Command, args []string) {
	repo := resolveRepo()
	branch := resolveBranch()

	if !releaseForce {
		fmt.Println("Error: the --force flag is required to release every agent's locks.")
		fmt.Printf("Example: swarm release-all --repo %s --force\n", repo)
		os.Exit(CLIExitError)
	}

	resp, err := releaseAllLocks(repo, branch)
	if err != nil {
		ux.Error(fmt.Sprintf("Release-all failed: %v", err))
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("Released %d locks on %s @ %s", resp.Released, repo, branch))
}

func runSweep(cmd *cobra.Command, args []string) {
	secret := sweepSecret
	if secret == "" {
		secret = os.Getenv("SWEEP_SECRET")
	}

	resp, err := sweepStaleLocks(secret)
	if err != nil {
		ux.Error(fmt.Sprintf("Sweep failed: %v", err))
		os.Exit(CLIExitError)
	}
	if resp.Cleaned == 0 {
		ux.Info("No expired locks found.")
		return
	}
	ux.Success(fmt.Sprintf("Swept %d expired locks", resp.Cleaned))
}

func runHealth(cmd *cobra.Command, args []string) {
	body, err := pingCoordinator()
	if err != nil {
		if body != nil {
			if redis, ok := body["redis"].(string); ok {
				ux.Error(fmt.Sprintf("Coordinator degraded: redis %s", redis))
				os.Exit(CLIExitFindings)
			}
		}
		ux.Error(fmt.Sprintf("Health check failed: %v", err))
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("Coordinator healthy at %s", getCoordinatorBaseURL()))
}
