// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// Redis key construction and scan patterns. Using these validators prevents
// key collisions and glob injection into KEYS scans.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// branchPattern matches safe git branch names.
// Allows: letters, digits, slashes for namespacing (feature/auth),
// dots, underscores, hyphens.
// Max length: 255 characters (git's practical ref limit)
var branchPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/\-]{0,254}$`)

// userIDPattern matches safe agent identifiers.
// Allows: letters, digits, dots, underscores, hyphens.
// Max length: 64 characters
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateBranch validates a git branch name before it is embedded in a
// storage key.
//
// Valid branches:
//   - 1-255 characters
//   - Letters, digits, dots, underscores, hyphens
//   - Slashes (/) for namespaced branches like feature/auth
//   - No "..", no leading dot or slash, no trailing slash or ".lock"
//
// Returns an error if the branch is invalid.
//
// Example:
//
//	if err := validation.ValidateBranch(branch); err != nil {
//	    return nil, fmt.Errorf("invalid branch: %w", err)
//	}
//	// Safe to use in a Redis key
func ValidateBranch(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch cannot be empty")
	}

	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("invalid branch format: %q (letters, digits, '.', '_', '/', '-' only, max 255 chars)", branch)
	}

	// Reject the remaining shapes git itself refuses
	if strings.Contains(branch, "..") ||
		strings.Contains(branch, "//") ||
		strings.HasSuffix(branch, "/") ||
		strings.HasSuffix(branch, ".") ||
		strings.HasSuffix(branch, ".lock") {
		return fmt.Errorf("invalid branch name: %q", branch)
	}

	return nil
}

// SanitizeBranch normalizes and validates a branch name.
// Returns the trimmed branch if valid, or an error if invalid.
//
// Use this at input boundaries where surrounding whitespace is likely:
//
//	safeBranch, err := validation.SanitizeBranch(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeBranch(branch string) (string, error) {
	normalized := strings.TrimSpace(branch)
	if err := ValidateBranch(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateUserID validates an agent identifier before it is used in lock
// ownership comparisons and activity records.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters, digits, dots, underscores, hyphens
//   - Must start with a letter or digit
//
// Returns an error if the identifier is invalid.
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	if !userIDPattern.MatchString(id) {
		return fmt.Errorf("invalid user id format: %q (letters, digits, '.', '_', '-' only, max 64 chars)", id)
	}

	return nil
}

// SanitizeUserID normalizes and validates an agent identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
func SanitizeUserID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateUserID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
