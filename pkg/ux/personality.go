// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel defines the richness of CLI output.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons and the welcome banner.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons without colored text.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs plain prefixed lines for scripting.
	PersonalityMachine PersonalityLevel = "machine"
)

// EnvPersonality overrides the personality level when set.
const EnvPersonality = "GRAPHSTATS_PERSONALITY"

// ParsePersonalityLevel converts a name or abbreviation to a level.
func ParsePersonalityLevel(s string) (PersonalityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull, nil
	case "", "standard", "std", "s":
		return PersonalityStandard, nil
	case "minimal", "min", "m":
		return PersonalityMinimal, nil
	case "machine", "quiet", "q":
		return PersonalityMachine, nil
	default:
		return PersonalityStandard, fmt.Errorf("unknown personality %q", s)
	}
}

// DetectPersonality picks a level for w.
//
// Description:
//
//	An explicit level wins, then $GRAPHSTATS_PERSONALITY. Otherwise a
//	terminal gets PersonalityFull and anything else PersonalityMachine.
func DetectPersonality(explicit string, w io.Writer) PersonalityLevel {
	for _, name := range []string{explicit, os.Getenv(EnvPersonality)} {
		if name == "" {
			continue
		}
		if level, err := ParsePersonalityLevel(name); err == nil {
			return level
		}
	}
	if IsTerminal(w) {
		return PersonalityFull
	}
	return PersonalityMachine
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
