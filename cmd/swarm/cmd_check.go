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

// runCheck asks the coordinator whether work on the files may proceed.
//
// The exit code mirrors the coordination status so agent loops can branch
// on it without parsing output: 0 for OK, 1 for STALE or CONFLICT, 2 when
// the request itself failed.
func runCheck(cmd *cobra.Command, args []string) {
	repo := resolveRepo()
	branch := resolveBranch()
	if checkHead == "" {
		ux.Error("--head is required: pass the commit id your working tree is based on")
		os.Exit(CLIExitError)
	}

	resp, err := checkStatus(datatypes.CheckStatusRequest{
		RepoURL:   repo,
		Branch:    branch,
		FilePaths: args,
		AgentHead: checkHead,
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Check failed: %v", err))
		os.Exit(CLIExitError)
	}

	if checkJSON {
		if err := outputJSON(resp); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else {
		renderCheckResponse(resp)
	}

	if resp.Status != datatypes.CoordinationOK {
		os.Exit(CLIExitFindings)
	}
}

// renderCheckResponse prints the human-readable form of a check result.
func renderCheckResponse(resp *datatypes.CheckStatusResponse) {
	ux.Muted(fmt.Sprintf("remote head %s", shortHead(resp.RepoHead)))

	for _, warning := range resp.Warnings {
		ux.Warning(warning)
	}

	if len(resp.Locks) > 0 {
		ux.Info("Held files in the way:")
		for path, entry := range resp.Locks {
			ux.FileStatus(path, lockIcon(entry.Status),
				fmt.Sprintf("%s by %s", entry.Status, holderName(entry)))
		}
	}

	renderOrchestration(resp.Orchestration)
}

// shortHead abbreviates a commit id for display.
func shortHead(head string) string {
	if len(head) > 12 {
		return head[:12]
	}
	return head
}
