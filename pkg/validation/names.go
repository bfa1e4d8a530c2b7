// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-supplied identifiers before they reach
// storage keys, CSV columns or metric attributes.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var workloadNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateWorkloadName checks that name is a lowercase snake_case
// identifier of at most 64 characters.
func ValidateWorkloadName(name string) error {
	if name == "" {
		return fmt.Errorf("workload name cannot be empty")
	}
	if !workloadNamePattern.MatchString(name) {
		return fmt.Errorf("invalid workload name: %q (must be 1-64 lowercase letters, digits or underscores, starting with a letter)", name)
	}
	return nil
}

// ValidateArgumentLabel checks that label is printable, single-line and at
// most 128 bytes.
func ValidateArgumentLabel(label string) error {
	if label == "" {
		return fmt.Errorf("argument label cannot be empty")
	}
	if len(label) > 128 {
		return fmt.Errorf("argument label too long: %d bytes (max 128)", len(label))
	}
	if strings.ContainsAny(label, "\r\n\t") {
		return fmt.Errorf("invalid argument label: %q (must be a single line)", label)
	}
	for _, r := range label {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("invalid argument label: %q (control characters)", label)
		}
	}
	return nil
}

// SanitizeWorkloadName trims and lowercases name, then validates it.
//
//	name, err := validation.SanitizeWorkloadName(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeWorkloadName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateWorkloadName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
