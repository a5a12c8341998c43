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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRepo indicates a repository reference that cannot be
	// canonicalized into owner/name form.
	ErrInvalidRepo = errors.New("remote: invalid repository reference")

	// ErrNotFound indicates a missing repository, branch, or blob.
	ErrNotFound = errors.New("remote: not found")

	// ErrContentSkipped marks blob content the caller should treat as
	// having nothing to parse: oversized or non-text files. It is a
	// per-file outcome, never a systemic failure.
	ErrContentSkipped = errors.New("remote: content skipped")
)

// QuotaError reports remote API quota exhaustion.
//
// Detected from 403/429 responses whose headers show the rate-limit window is
// spent. Callers pick it out with errors.As and either propagate a throttled
// response or fall back to cached data.
type QuotaError struct {
	// ResetAt is when the quota window reopens. Zero when the remote gave
	// no usable hint.
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	if e.ResetAt.IsZero() {
		return "remote: api quota exhausted"
	}
	return fmt.Sprintf("remote: api quota exhausted until %s", e.ResetAt.UTC().Format(time.RFC3339))
}
