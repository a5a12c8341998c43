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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	coordinatorURL   string // CLI override for the coordinator base URL
	repoFlag         string
	branchFlag       string
	agentIDFlag      string
	agentNameFlag    string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	checkHead     string
	checkJSON     bool
	statusHead    string
	statusMessage string
	statusNewHead string
	locksJSON     bool
	graphJSON     bool
	graphRebuild  bool
	activityLimit int
	activityJSON  bool
	releaseForce  bool
	sweepSecret   string

	rootCmd = &cobra.Command{
		Use:   "swarm",
		Short: "A cli for AI coding agents sharing one repository",
		Long: `Swarm coordinates multiple coding agents working on the same
				repository: advisory file locks, staleness checks against the
				remote head, and a shared dependency graph.`,
	}

	// --- Coordination ---
	checkCmd = &cobra.Command{
		Use:   "check FILES...",
		Short: "Ask whether work on the files may proceed",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCheck, // Defined in cmd_check.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Declare what this agent is doing with files",
	}
	statusWritingCmd = &cobra.Command{
		Use:   "writing FILES...",
		Short: "Claim files for exclusive editing",
		Args:  cobra.MinimumNArgs(1),
		Run:   runStatusWriting, // Defined in cmd_status.go
	}
	statusReadingCmd = &cobra.Command{
		Use:   "reading FILES...",
		Short: "Mark files as being read",
		Args:  cobra.MinimumNArgs(1),
		Run:   runStatusReading, // Defined in cmd_status.go
	}
	statusOpenCmd = &cobra.Command{
		Use:   "open FILES...",
		Short: "Release previously held files",
		Args:  cobra.MinimumNArgs(1),
		Run:   runStatusOpen, // Defined in cmd_status.go
	}

	// --- Observation ---
	locksCmd = &cobra.Command{
		Use:   "locks",
		Short: "Show the current lock table for the working branch",
		Run:   runLocks, // Defined in cmd_locks.go
	}
	activityCmd = &cobra.Command{
		Use:   "activity",
		Short: "Show recent agent activity, newest first",
		Run:   runActivity, // Defined in cmd_locks.go
	}
	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Show the dependency graph for the working branch",
		Run:   runGraph, // Defined in cmd_graph.go
	}

	// --- Administration ---
	releaseAllCmd = &cobra.Command{
		Use:   "release-all",
		Short: "DANGER: Release every lock on the working branch",
		Run:   runReleaseAll, // Defined in cmd_admin.go
	}
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Trigger a stale-lock sweep on the coordinator",
		Run:   runSweep, // Defined in cmd_admin.go
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check coordinator and storage health",
		Run:   runHealth, // Defined in cmd_admin.go
	}
)

// init runs when the Go program starts
func init() {
	// Global flags shared by every command
	rootCmd.PersistentFlags().StringVar(&coordinatorURL, "coordinator", "",
		"Coordinator base URL (default http://localhost:12230)")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository as owner/name")
	rootCmd.PersistentFlags().StringVar(&branchFlag, "branch", "",
		"Working branch (default main)")
	rootCmd.PersistentFlags().StringVar(&agentIDFlag, "agent", "",
		"Agent id sent as X-User-ID")
	rootCmd.PersistentFlags().StringVar(&agentNameFlag, "name", "",
		"Agent display name sent as X-User-Name")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")

	// Coordination
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkHead, "head", "",
		"Commit id the agent's working tree is based on (required)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false,
		"Output the full response as JSON for scripting")

	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusWritingCmd)
	statusCmd.AddCommand(statusReadingCmd)
	statusCmd.AddCommand(statusOpenCmd)
	statusCmd.PersistentFlags().StringVarP(&statusMessage, "message", "m", "",
		"What the agent is doing with the files (required)")
	statusCmd.PersistentFlags().StringVar(&statusHead, "head", "",
		"Commit id the agent is based on (required for writing)")
	statusOpenCmd.Flags().StringVar(&statusNewHead, "new-head", "",
		"Commit id after a push, proves the branch advanced")

	// Observation
	rootCmd.AddCommand(locksCmd)
	locksCmd.Flags().BoolVar(&locksJSON, "json", false,
		"Output as JSON for scripting")
	rootCmd.AddCommand(activityCmd)
	activityCmd.Flags().IntVar(&activityLimit, "limit", 20,
		"Maximum number of events to show")
	activityCmd.Flags().BoolVar(&activityJSON, "json", false,
		"Output as JSON for scripting")
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().BoolVar(&graphRebuild, "regenerate", false,
		"Force a rebuild instead of serving the cached graph")
	graphCmd.Flags().BoolVar(&graphJSON, "json", false,
		"Output the full graph as JSON")

	// Administration
	rootCmd.AddCommand(releaseAllCmd)
	releaseAllCmd.Flags().BoolVar(&releaseForce, "force", false,
		"Required to confirm releasing every agent's locks")
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepSecret, "secret", "",
		"Sweeper shared secret (default SWEEP_SECRET env)")
	rootCmd.AddCommand(healthCmd)
}
