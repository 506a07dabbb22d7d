// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    PersonalityLevel
		wantErr bool
	}{
		{"full", PersonalityFull, false},
		{"F", PersonalityFull, false},
		{"", PersonalityStandard, false},
		{"std", PersonalityStandard, false},
		{"min", PersonalityMinimal, false},
		{"quiet", PersonalityMachine, false},
		{"loud", PersonalityStandard, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePersonalityLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectPersonality(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv(EnvPersonality, "")
	assert.Equal(t, PersonalityMachine, DetectPersonality("", &buf), "non-terminal falls back to machine")
	assert.Equal(t, PersonalityMinimal, DetectPersonality("minimal", &buf))

	t.Setenv(EnvPersonality, "standard")
	assert.Equal(t, PersonalityStandard, DetectPersonality("", &buf))
	assert.Equal(t, PersonalityFull, DetectPersonality("full", &buf), "explicit level wins")

	t.Setenv(EnvPersonality, "bogus")
	assert.Equal(t, PersonalityMachine, DetectPersonality("", &buf))
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityMachine)

	p.Title("graphstats")
	p.Success("Job histo finished.")
	p.Warning("slow source")
	p.Error("Job histo failed: boom")
	p.Info("Hit ENTER for progress")
	p.Box("Run", "abc")

	want := strings.Join([]string{
		"OK: Job histo finished.",
		"WARN: slow source",
		"ERROR: Job histo failed: boom",
		"Hit ENTER for progress",
		"Run: abc",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestPrinter_Minimal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityMinimal)

	p.Success("done")
	p.Error("failed")

	assert.Equal(t, "✓ done\n✗ failed\n", buf.String())
}

func TestPrinter_Full(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityFull)

	p.Title("Welcome")
	p.Success("done")
	p.Info("note")

	out := buf.String()
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "│")
	assert.Equal(t, PersonalityFull, p.Level())
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityFull)
	p.Plain("Total: 3\n")
	assert.Equal(t, "Total: 3\n", buf.String())
}
