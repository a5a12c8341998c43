// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire types shared by the coordinator service:
// lock entries, the dependency graph, orchestration commands, activity events,
// and the HTTP request/response bodies.
//
// # Description
//
// Everything in this package serializes to snake_case JSON. Lock entries are
// the exact form persisted in the key-value store, so changing a field here
// changes the storage format.
//
// # Thread Safety
//
// All types are plain data and safe to copy. None carry internal state.
package datatypes

// LockStatus describes the intent recorded on a lock entry.
type LockStatus string

const (
	// StatusReading marks a shared-intent hold: the agent is consuming the
	// file and wants observers to know.
	StatusReading LockStatus = "READING"

	// StatusWriting marks an exclusive-intent hold: the agent is editing
	// the file.
	StatusWriting LockStatus = "WRITING"

	// StatusOpen is not stored on entries; it is the post_status verb that
	// releases previously held files.
	StatusOpen LockStatus = "OPEN"
)

// Valid reports whether the status is one an agent may post.
func (s LockStatus) Valid() bool {
	switch s {
	case StatusReading, StatusWriting, StatusOpen:
		return true
	}
	return false
}

// Lockable reports whether the status installs a lock entry.
func (s LockStatus) Lockable() bool {
	return s == StatusReading || s == StatusWriting
}

// LockEntry is an advisory hold on one file of one (repo, branch).
//
// # Description
//
// At most one non-expired entry exists per file. Entries are stored as JSON
// values in a hash keyed by file path, and expire passively: readers drop any
// entry whose Expiry is at or before the read time, whether or not the sweeper
// has physically removed it yet.
type LockEntry struct {
	// FilePath is the repo-relative path the hold applies to.
	FilePath string `json:"file_path"`

	// UserID identifies the owner. Only the owner may refresh or release.
	UserID string `json:"user_id"`

	// UserName is the human-facing name shown to observers.
	UserName string `json:"user_name"`

	// Status is READING or WRITING.
	Status LockStatus `json:"status"`

	// AgentHead is the commit id the owner was based on at acquisition.
	AgentHead string `json:"agent_head"`

	// Message is the owner's stated intent. Required, never empty.
	Message string `json:"message"`

	// Timestamp is the creation or last refresh time, ms since epoch.
	Timestamp int64 `json:"timestamp"`

	// Expiry is Timestamp plus the lock TTL, ms since epoch.
	Expiry int64 `json:"expiry"`
}

// Expired reports whether the entry is semantically absent at nowMs.
func (e LockEntry) Expired(nowMs int64) bool {
	return e.Expiry <= nowMs
}
