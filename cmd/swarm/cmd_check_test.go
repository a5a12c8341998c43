// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

func TestCheckCommandPayload(t *testing.T) {
	// 1. Setup mock coordinator
	setupCLITest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/coordination/check-status" {
			t.Errorf("Expected /v1/coordination/check-status, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-User-ID"); got != "agent-7" {
			t.Errorf("Expected X-User-ID agent-7, got %q", got)
		}

		var body datatypes.CheckStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if body.RepoURL != "octo/webapp" {
			t.Errorf("Expected repo octo/webapp, got %q", body.RepoURL)
		}
		if body.Branch != "main" {
			t.Errorf("Expected branch main, got %q", body.Branch)
		}
		if len(body.FilePaths) != 2 || body.FilePaths[0] != "src/a.ts" {
			t.Errorf("Unexpected file paths: %v", body.FilePaths)
		}
		if body.AgentHead != "abc123" {
			t.Errorf("Expected agent head abc123, got %q", body.AgentHead)
		}

		json.NewEncoder(w).Encode(datatypes.CheckStatusResponse{
			Status:   datatypes.CoordinationOK,
			RepoHead: "abc123",
			Locks:    map[string]datatypes.LockEntry{},
			Orchestration: datatypes.Orchestration{
				Action: datatypes.ActionProceed,
				Reason: "No conflicts.",
			},
		})
	})

	// 2. Set globals the flags would have set
	repoFlag = "octo/webapp"
	agentIDFlag = "agent-7"
	checkHead = "abc123"

	// 3. Run; status OK means no exit, and the mock verified the payload
	runCheck(&cobra.Command{}, []string{"src/a.ts", "src/b.ts"})
}

func TestCheckCommandBranchDefaultsToMain(t *testing.T) {
	var gotBranch string
	setupCLITest(t, func(w http.ResponseWriter, r *http.Request) {
		var body datatypes.CheckStatusRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotBranch = body.Branch
		json.NewEncoder(w).Encode(datatypes.CheckStatusResponse{
			Status:        datatypes.CoordinationOK,
			Orchestration: datatypes.Orchestration{Action: datatypes.ActionProceed, Reason: "ok"},
		})
	})

	repoFlag = "octo/webapp"
	checkHead = "abc123"

	runCheck(&cobra.Command{}, []string{"src/a.ts"})

	if gotBranch != "main" {
		t.Errorf("Expected default branch main, got %q", gotBranch)
	}
}

func TestCheckCommandReadsConfigFile(t *testing.T) {
	var gotRepo, gotUser string
	setupCLITest(t, func(w http.ResponseWriter, r *http.Request) {
		var body datatypes.CheckStatusRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotRepo = body.RepoURL
		gotUser = r.Header.Get("X-User-ID")
		json.NewEncoder(w).Encode(datatypes.CheckStatusResponse{
			Status:        datatypes.CoordinationOK,
			Orchestration: datatypes.Orchestration{Action: datatypes.ActionProceed, Reason: "ok"},
		})
	})

	// Config file values apply when no flag or env overrides them.
	config = Config{Repo: "octo/api", AgentID: "refactor-bot"}
	checkHead = "abc123"

	runCheck(&cobra.Command{}, []string{"src/a.ts"})

	if gotRepo != "octo/api" {
		t.Errorf("Expected repo octo/api from config, got %q", gotRepo)
	}
	if gotUser != "refactor-bot" {
		t.Errorf("Expected agent refactor-bot from config, got %q", gotUser)
	}
}

func TestShortHead(t *testing.T) {
	if got := shortHead("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("Expected 12-char head, got %q", got)
	}
	if got := shortHead("abc"); got != "abc" {
		t.Errorf("Short heads pass through, got %q", got)
	}
}
