// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package activity publishes and retains coordination events.
//
// Publication is fire-and-forget from the caller's point of view: a failed
// or slow sink must never affect the coordination outcome it describes.
// Observers poll the retained window; there is no subscription machinery.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

// Sink receives events emitted by post_status. Implementations must be
// cheap and must not block.
type Sink interface {
	Publish(ctx context.Context, events ...datatypes.ActivityEvent)
}

// Nop discards everything. It is the default sink when no observer feed is
// configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...datatypes.ActivityEvent) {}

// EventType maps a posted status to its event type. The three lock verbs
// have fixed names; anything else is recorded informationally under
// status_<lowercased value>.
func EventType(status datatypes.LockStatus) string {
	switch status {
	case datatypes.StatusWriting:
		return datatypes.EventStatusWriting
	case datatypes.StatusReading:
		return datatypes.EventStatusReading
	case datatypes.StatusOpen:
		return datatypes.EventStatusOpen
	default:
		return "status_" + strings.ToLower(string(status))
	}
}

// NewEvents builds one event per file for a post_status outcome.
func NewEvents(repo, branch string, paths []string, status datatypes.LockStatus, userID, userName, message string, now time.Time) []datatypes.ActivityEvent {
	eventType := EventType(status)
	ts := now.UnixMilli()
	events := make([]datatypes.ActivityEvent, 0, len(paths))
	for _, p := range paths {
		events = append(events, datatypes.ActivityEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Repo:      repo,
			Branch:    branch,
			FilePath:  p,
			UserID:    userID,
			UserName:  userName,
			Message:   message,
			Status:    status,
			Timestamp: ts,
		})
	}
	return events
}
