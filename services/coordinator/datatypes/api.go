// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// CheckStatusRequest asks whether work on file_paths may proceed.
type CheckStatusRequest struct {
	RepoURL   string   `json:"repo_url" binding:"required"`
	Branch    string   `json:"branch" binding:"required"`
	FilePaths []string `json:"file_paths" binding:"required,min=1,dive,required"`
	AgentHead string   `json:"agent_head" binding:"required"`
}

// CheckStatusResponse reports staleness, conflicts, and the next action.
type CheckStatusResponse struct {
	Status        CoordinationStatus   `json:"status"`
	RepoHead      string               `json:"repo_head"`
	Locks         map[string]LockEntry `json:"locks"`
	Warnings      []string             `json:"warnings"`
	Orchestration Orchestration        `json:"orchestration"`
}

// PostStatusRequest declares what the agent is doing with file_paths.
//
// AgentHead is required for WRITING, optional for READING, and consulted for
// OPEN only when NewRepoHead is also supplied. Caller identity arrives in the
// X-User-ID and X-User-Name headers, not in the body.
type PostStatusRequest struct {
	RepoURL     string   `json:"repo_url" binding:"required"`
	Branch      string   `json:"branch" binding:"required"`
	FilePaths   []string `json:"file_paths" binding:"required,min=1,dive,required"`
	Status      string   `json:"status" binding:"required"`
	Message     string   `json:"message" binding:"required"`
	AgentHead   string   `json:"agent_head"`
	NewRepoHead string   `json:"new_repo_head"`
}

// PostStatusResponse reports the outcome and the next action.
type PostStatusResponse struct {
	Success              bool                 `json:"success"`
	Locks                map[string]LockEntry `json:"locks,omitempty"`
	OrphanedDependencies []string             `json:"orphaned_dependencies,omitempty"`
	Orchestration        Orchestration        `json:"orchestration"`
}

// ReleaseAllRequest wipes every lock for one (repo, branch).
type ReleaseAllRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
	Branch  string `json:"branch" binding:"required"`
}

// ReleaseAllResponse reports how many entries were removed.
type ReleaseAllResponse struct {
	Success  bool `json:"success"`
	Released int  `json:"released"`
}

// CleanupResponse reports a sweep of expired locks.
type CleanupResponse struct {
	Success   bool  `json:"success"`
	Cleaned   int   `json:"cleaned"`
	Timestamp int64 `json:"timestamp"`
}

// LocksResponse is the companion poll read of current lock state.
type LocksResponse struct {
	Locks map[string]LockEntry `json:"locks"`
}

// ActivityResponse lists recent activity events, newest first.
type ActivityResponse struct {
	Events []ActivityEvent `json:"events"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
