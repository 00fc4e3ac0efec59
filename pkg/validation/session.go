// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for security-critical values.
//
// Session identifiers and question labels end up in storage keys and log
// lines, so anything accepted from a request path or body is validated
// here first. This prevents key-namespace collisions and log injection.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sessionIDPattern matches identifiers safe to embed in storage keys.
// UUIDs fit, as do short human-assigned ids used in tests and tooling.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,127}$`)

// labelPattern matches question labels like "AA_1" or "BC_12".
var labelPattern = regexp.MustCompile(`^[A-Z]{1,8}_[0-9]{1,4}$`)

// ValidateSessionID validates a session identifier taken from a request.
//
// Valid identifiers:
//   - 1-128 characters
//   - Letters, digits, underscores, hyphens
//   - Must start with a letter or digit
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateSessionID(id); err != nil {
//	    c.JSON(http.StatusBadRequest, ...)
//	}
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id format: %q (must be 1-128 alphanumeric chars, underscores, or hyphens)", id)
	}
	return nil
}

// ValidateLabel validates a question label.
// Labels come from the question bank, not from respondents, so this
// guards tooling and admin inputs rather than the hot path.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("invalid label format: %q (expected e.g. \"AA_1\")", label)
	}
	return nil
}

// SanitizeSessionID normalizes and validates a session identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
func SanitizeSessionID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateSessionID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
