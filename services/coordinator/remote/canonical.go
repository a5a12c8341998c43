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
	"fmt"
	"strings"
)

// CanonicalRepo normalizes a caller-supplied repository reference.
//
// # Description
//
// Agents send whatever their tooling had on hand: full https URLs, host
// prefixed paths, scp-style ssh remotes, or a bare owner/name pair. All of
// them collapse to the same canonical identity so that every agent working
// on one repository lands on the same lock and graph keys.
//
// Accepted forms:
//
//	https://github.com/Owner/Repo
//	http://github.com/Owner/Repo.git
//	github.com/Owner/Repo
//	git@github.com:Owner/Repo.git
//	Owner/Repo
//
// # Outputs
//
//   - Repo: lower-cased owner and name, .git suffix stripped.
//   - error: ErrInvalidRepo when the input does not reduce to owner/name.
func CanonicalRepo(raw string) (Repo, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Repo{}, fmt.Errorf("%w: empty", ErrInvalidRepo)
	}
	s = strings.TrimSuffix(s, "/")

	switch {
	case strings.Contains(s, "://"):
		// Scheme-qualified URL: drop scheme and host.
		s = s[strings.Index(s, "://")+3:]
		if i := strings.Index(s, "/"); i >= 0 {
			s = s[i+1:]
		} else {
			return Repo{}, fmt.Errorf("%w: %q has no path", ErrInvalidRepo, raw)
		}
	case strings.Contains(s, "@") && strings.Contains(s, ":"):
		// scp-style ssh remote: everything after the colon is the path.
		s = s[strings.Index(s, ":")+1:]
	default:
		// Host-prefixed path: a first segment containing a dot is a host.
		if i := strings.Index(s, "/"); i > 0 && strings.Contains(s[:i], ".") {
			s = s[i+1:]
		}
	}

	s = strings.TrimSuffix(s, ".git")
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("%w: %q does not reduce to owner/name", ErrInvalidRepo, raw)
	}
	return Repo{
		Owner: strings.ToLower(parts[0]),
		Name:  strings.ToLower(parts[1]),
	}, nil
}
