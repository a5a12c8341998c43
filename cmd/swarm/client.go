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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

// apiClient keeps a timeout so a wedged coordinator cannot hang an agent's
// edit loop.
var apiClient = &http.Client{Timeout: 30 * time.Second}

// doCoordination sends one request to the coordinator and decodes the JSON
// body into out (when out is non-nil). Identity headers ride on every
// request; the server ignores them where they do not matter.
//
// Error responses decode into the uniform error body so the agent sees the
// server's message, not a status code.
func doCoordination(method, path string, query url.Values, payload, out interface{}) error {
	fullURL := getCoordinatorBaseURL() + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, fullURL, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, name := resolveIdentity(); id != "" {
		req.Header.Set("X-User-ID", id)
		req.Header.Set("X-User-Name", name)
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator unreachable at %s: %w", getCoordinatorBaseURL(), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr datatypes.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Details != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Details)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("coordinator returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("error parsing response: %w", err)
		}
	}
	return nil
}

// checkStatus asks whether work on the files may proceed.
func checkStatus(req datatypes.CheckStatusRequest) (*datatypes.CheckStatusResponse, error) {
	var resp datatypes.CheckStatusResponse
	if err := doCoordination(http.MethodPost, "/v1/coordination/check-status", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// postStatus declares what the agent is doing with the files.
func postStatus(req datatypes.PostStatusRequest) (*datatypes.PostStatusResponse, error) {
	var resp datatypes.PostStatusResponse
	if err := doCoordination(http.MethodPost, "/v1/coordination/status", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fetchLocks reads the current lock table for (repo, branch).
func fetchLocks(repo, branch string) (*datatypes.LocksResponse, error) {
	q := url.Values{}
	q.Set("repo_url", repo)
	q.Set("branch", branch)
	var resp datatypes.LocksResponse
	if err := doCoordination(http.MethodGet, "/v1/coordination/locks", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fetchGraph reads the dependency graph, optionally forcing a rebuild.
func fetchGraph(repo, branch string, regenerate bool) (*datatypes.DependencyGraph, error) {
	q := url.Values{}
	q.Set("repo_url", repo)
	q.Set("branch", branch)
	if regenerate {
		q.Set("regenerate", "true")
	}
	var resp datatypes.DependencyGraph
	if err := doCoordination(http.MethodGet, "/v1/coordination/graph", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fetchActivity reads recent activity events, newest first.
func fetchActivity(repo, branch string, limit int) (*datatypes.ActivityResponse, error) {
	q := url.Values{}
	if repo != "" {
		q.Set("repo_url", repo)
	}
	if branch != "" {
		q.Set("branch", branch)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp datatypes.ActivityResponse
	if err := doCoordination(http.MethodGet, "/v1/coordination/activity", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// releaseAllLocks wipes every lock for (repo, branch).
func releaseAllLocks(repo, branch string) (*datatypes.ReleaseAllResponse, error) {
	req := datatypes.ReleaseAllRequest{RepoURL: repo, Branch: branch}
	var resp datatypes.ReleaseAllResponse
	if err := doCoordination(http.MethodPost, "/v1/coordination/release-all", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// sweepStaleLocks triggers the admin cleanup endpoint. The secret rides in
// the Authorization header, matching the sweeper auth middleware.
func sweepStaleLocks(secret string) (*datatypes.CleanupResponse, error) {
	fullURL := getCoordinatorBaseURL() + "/v1/admin/cleanup-stale-locks"
	req, err := http.NewRequest(http.MethodPost, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coordinator unreachable at %s: %w", getCoordinatorBaseURL(), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr datatypes.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s", apiErr.Error)
		}
		return nil, fmt.Errorf("coordinator returned status %d: %s", resp.StatusCode, string(raw))
	}

	var cleanup datatypes.CleanupResponse
	if err := json.Unmarshal(raw, &cleanup); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return &cleanup, nil
}

// pingCoordinator hits /healthz and returns the decoded body.
func pingCoordinator() (map[string]interface{}, error) {
	resp, err := apiClient.Get(getCoordinatorBaseURL() + "/healthz")
	if err != nil {
		return nil, fmt.Errorf("coordinator unreachable at %s: %w", getCoordinatorBaseURL(), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("coordinator unhealthy (status %d)", resp.StatusCode)
	}
	return body, nil
}
