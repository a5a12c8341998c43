// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lock

import "errors"

var (
	// ErrInvalidRequest indicates a malformed acquire or release request:
	// empty path set, blank message, unknown status, or missing user id.
	ErrInvalidRequest = errors.New("invalid lock request")

	// ErrInvalidLockResponse indicates the scripted transaction replied in
	// a shape the engine cannot decode.
	ErrInvalidLockResponse = errors.New("invalid lock response")
)

// ReasonFileConflict is the business reason carried on a failed acquire.
const ReasonFileConflict = "FILE_CONFLICT"
