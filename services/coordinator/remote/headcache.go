// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remote

import (
	"sync"
	"time"
)

// HeadCache remembers recently fetched branch heads per (repo, branch).
//
// # Description
//
// Branch tips move rarely compared to how often agents ask about them.
// Callers that can tolerate a bounded age read through the cache and spare
// the remote quota; callers that need the true tip bypass it with GetHead.
//
// # Thread Safety
//
// Safe for concurrent use.
type HeadCache struct {
	mu    sync.RWMutex
	heads map[string]headStamp

	// now is swapped in tests to cross age boundaries without sleeping.
	now func() time.Time
}

type headStamp struct {
	sha       string
	fetchedAt time.Time
}

// NewHeadCache returns an empty cache using the wall clock.
func NewHeadCache() *HeadCache {
	return &HeadCache{
		heads: make(map[string]headStamp),
		now:   time.Now,
	}
}

func headKey(repo Repo, branch string) string {
	return repo.String() + "#" + branch
}

// Get returns the cached head when it is younger than maxAge. A maxAge of
// zero or less never hits.
func (c *HeadCache) Get(repo Repo, branch string, maxAge time.Duration) (string, bool) {
	if maxAge <= 0 {
		return "", false
	}

	c.mu.RLock()
	stamp, ok := c.heads[headKey(repo, branch)]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().Sub(stamp.fetchedAt) > maxAge {
		return "", false
	}
	return stamp.sha, true
}

// Put stores a freshly fetched head.
func (c *HeadCache) Put(repo Repo, branch, sha string) {
	c.mu.Lock()
	c.heads[headKey(repo, branch)] = headStamp{sha: sha, fetchedAt: c.now()}
	c.mu.Unlock()
}
