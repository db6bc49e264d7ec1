// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// database keys or export queries. Run IDs arrive as URL path parameters and
// are embedded verbatim in BadgerDB keys and InfluxDB tags, so they are
// checked against a strict allowlist before any lookup.
package validation

import (
	"fmt"
	"regexp"
)

// runIDPattern matches valid audit run identifiers.
// Allows: letters, digits, hyphens, underscores.
// Max length: 64 characters (generated IDs are 36-character UUIDs)
var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// ValidateRunID validates an audit run identifier before it reaches the store.
//
// Valid run IDs:
//   - 1-64 characters
//   - Letters a-z, A-Z
//   - Digits 0-9
//   - Hyphens (-) and underscores (_) after the first character
//
// Returns an error if the run ID is invalid.
//
// Example:
//
//	if err := validation.ValidateRunID(runID); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
//	    return
//	}
//	// Safe to use as a store key
func ValidateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	if !runIDPattern.MatchString(runID) {
		return fmt.Errorf("invalid run id format: %q (must be 1-64 alphanumeric chars, hyphens, or underscores)", runID)
	}

	return nil
}
