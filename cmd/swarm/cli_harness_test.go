// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// setupCLITest starts a mock coordinator, points the client at it, and
// resets every flag global so tests cannot leak state into each other.
func setupCLITest(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Inject mock URL via env var, same path a container override uses.
	t.Setenv("SWARM_COORDINATOR_URL", server.URL)
	t.Setenv("SWARM_REPO", "")
	t.Setenv("SWARM_BRANCH", "")
	t.Setenv("SWARM_AGENT_ID", "")
	t.Setenv("SWARM_AGENT_NAME", "")

	config = Config{}
	coordinatorURL = ""
	repoFlag = ""
	branchFlag = ""
	agentIDFlag = ""
	agentNameFlag = ""
	checkHead = ""
	checkJSON = false
	statusHead = ""
	statusMessage = ""
	statusNewHead = ""
	locksJSON = false
	graphJSON = false
	graphRebuild = false
	activityLimit = 20
	activityJSON = false
	releaseForce = false
	sweepSecret = ""

	return server
}
