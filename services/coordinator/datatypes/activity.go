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

// Activity event types emitted by post_status. Observers that poll lock state
// derive lock_acquired / lock_released / lock_reassigned themselves by diffing
// successive snapshots; the coordinator only publishes what the agent said.
const (
	EventStatusWriting = "status_writing"
	EventStatusReading = "status_reading"
	EventStatusOpen    = "status_open"
)

// ActivityEvent is one observable action by one agent on one file.
type ActivityEvent struct {
	// ID is a random identifier for deduplication by observers.
	ID string `json:"id"`

	// Type is status_writing, status_reading, status_open, or
	// status_<lower> for informational statuses.
	Type string `json:"type"`

	// Repo is the canonical owner/name the event belongs to.
	Repo string `json:"repo"`

	// Branch the event belongs to.
	Branch string `json:"branch"`

	// FilePath the event refers to.
	FilePath string `json:"file_path"`

	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`

	// Message is the agent's stated intent, verbatim from the request.
	Message string `json:"message"`

	// Status is the posted status that produced the event.
	Status LockStatus `json:"status"`

	// Timestamp is ms since epoch.
	Timestamp int64 `json:"timestamp"`
}
