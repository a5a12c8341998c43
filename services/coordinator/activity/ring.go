// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package activity

import (
	"context"
	"sync"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

// DefaultRingCapacity retains enough events to cover a busy swarm's recent
// past without growing unbounded.
const DefaultRingCapacity = 1024

// Ring is a bounded in-memory event window. Old events are overwritten by
// new ones once the capacity is reached.
//
// # Thread Safety
//
// Safe for concurrent use.
type Ring struct {
	mu   sync.RWMutex
	buf  []datatypes.ActivityEvent
	next int
	size int
}

// NewRing allocates a ring holding up to capacity events. Non-positive
// capacities fall back to DefaultRingCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{buf: make([]datatypes.ActivityEvent, capacity)}
}

// Publish appends events to the window.
func (r *Ring) Publish(_ context.Context, events ...datatypes.ActivityEvent) {
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.buf[r.next] = e
		r.next = (r.next + 1) % len(r.buf)
		if r.size < len(r.buf) {
			r.size++
		}
	}
}

// Recent returns up to limit events, newest first. Empty repo or branch
// match everything; a non-positive limit means the whole retained window.
func (r *Ring) Recent(repo, branch string, limit int) []datatypes.ActivityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]datatypes.ActivityEvent, 0, limit)
	for i := 1; i <= r.size && len(out) < limit; i++ {
		e := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if repo != "" && e.Repo != repo {
			continue
		}
		if branch != "" && e.Branch != branch {
			continue
		}
		out = append(out, e)
	}
	return out
}
