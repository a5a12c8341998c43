// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinate

import "errors"

// ErrValidation wraps every malformed-request failure. The transport layer
// maps it to a 400. Conflicts and staleness are not errors; they ride in
// the response's orchestration command.
var ErrValidation = errors.New("coordinate: invalid request")
