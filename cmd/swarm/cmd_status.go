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
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

func runStatusWriting(cmd *cobra.Command, args []string) {
	if statusHead == "" {
		ux.Error("--head is required for writing: pass the commit id you are based on")
		os.Exit(CLIExitError)
	}
	postAgentStatus(datatypes.StatusWriting, args)
}

func runStatusReading(cmd *cobra.Command, args []string) {
	postAgentStatus(datatypes.StatusReading, args)
}

func runStatusOpen(cmd *cobra.Command, args []string) {
	postAgentStatus(datatypes.StatusOpen, args)
}

// postAgentStatus sends one post_status call and renders the outcome.
//
// A rejected claim is not a transport failure: the coordinator answers 200
// with Success=false and a SWITCH_TASK directive, and the process exits 1
// so scripted agents notice.
func postAgentStatus(status datatypes.LockStatus, files []string) {
	repo := resolveRepo()
	branch := resolveBranch()
	requireIdentity()
	if statusMessage == "" {
		ux.Error("--message is required: say what you are doing with the files")
		os.Exit(CLIExitError)
	}

	resp, err := postStatus(datatypes.PostStatusRequest{
		RepoURL:     repo,
		Branch:      branch,
		FilePaths:   files,
		Status:      string(status),
		Message:     statusMessage,
		AgentHead:   statusHead,
		NewRepoHead: statusNewHead,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Status post failed: %v", err))
		os.Exit(CLIExitError)
	}

	if resp.Success {
		switch status {
		case datatypes.StatusOpen:
			for _, path := range files {
				ux.FileStatus(path, ux.IconSuccess, "released")
			}
		default:
			for _, path := range files {
				ux.FileStatus(path, lockIcon(status), fmt.Sprintf("held for %s", status))
			}
		}
		for _, orphan := range resp.OrphanedDependencies {
			ux.Warning(fmt.Sprintf("%s imports a file you no longer hold", orphan))
		}
	}

	renderOrchestration(resp.Orchestration)

	if !resp.Success {
		if len(resp.Locks) > 0 {
			ux.Info("Held files in the way:")
			for path, entry := range resp.Locks {
				ux.FileStatus(path, lockIcon(entry.Status),
					fmt.Sprintf("%s by %s", entry.Status, holderName(entry)))
			}
		}
		os.Exit(CLIExitFindings)
	}
}
