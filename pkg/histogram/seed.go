// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedSeed is returned for seed lines that cannot be parsed.
var ErrMalformedSeed = errors.New("malformed seed line")

// SampleParser converts one rendered sample back into a sample value.
type SampleParser[S any] func(string) (S, error)

// Seed pre-populates buckets from a previously rendered report.
//
// Description:
//
//	Each non-blank line describes one bucket as whitespace separated
//	columns "rank count range [samples]". Range is "0" or "base-top"; the
//	bucket key is derived from base. Samples may be separated by "-" or
//	by "," and may be "[snip]". Trailing columns (aggregates, weights) are
//	ignored, as are the "Total ..." and "Rank ..." header lines of a
//	rendered report.
//
//	A seeded bucket replaces any existing bucket at the same key. Running
//	totals are left untouched.
//
// Inputs:
//
//	r - Seed text.
//	parse - Converts a sample token. Nil keeps no samples.
//
// Outputs:
//
//	int - Number of buckets seeded.
//	error - ErrMalformedSeed (wrapped with the line number) or a read error.
func (h *Histogram[S]) Seed(r io.Reader, parse SampleParser[S]) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seeded := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isHeaderLine(line) {
			continue
		}
		key, chunk, err := h.parseSeedLine(line, parse)
		if err != nil {
			return seeded, fmt.Errorf("line %d: %w", lineNo, err)
		}
		h.PutChunk(key, chunk)
		seeded++
	}
	if err := scanner.Err(); err != nil {
		return seeded, fmt.Errorf("read seed: %w", err)
	}
	return seeded, nil
}

func isHeaderLine(line string) bool {
	return strings.HasPrefix(line, "Total ") || strings.HasPrefix(line, "Rank\t") || strings.HasPrefix(line, "Rank ")
}

func (h *Histogram[S]) parseSeedLine(line string, parse SampleParser[S]) (int64, Chunk[S], error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0, Chunk[S]{}, fmt.Errorf("%w: want at least 3 columns, got %d", ErrMalformedSeed, len(fields))
	}

	count, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || count < 0 {
		return 0, Chunk[S]{}, fmt.Errorf("%w: bad count %q", ErrMalformedSeed, fields[1])
	}

	key, err := h.parseRange(fields[2])
	if err != nil {
		return 0, Chunk[S]{}, err
	}

	var samples []S
	if open := strings.IndexByte(line, '['); open >= 0 && parse != nil {
		inner, err := bracketed(line[open:])
		if err != nil {
			return 0, Chunk[S]{}, err
		}
		for _, token := range splitSamples(inner) {
			sample, err := parse(token)
			if err != nil {
				return 0, Chunk[S]{}, fmt.Errorf("%w: sample %q: %v", ErrMalformedSeed, token, err)
			}
			samples = append(samples, sample)
		}
	}
	return key, NewChunk(count, samples...), nil
}

func (h *Histogram[S]) parseRange(s string) (int64, error) {
	if s == "0" {
		return 0, nil
	}
	base, _, ok := strings.Cut(s, "-")
	if !ok {
		return 0, fmt.Errorf("%w: bad range %q", ErrMalformedSeed, s)
	}
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: bad range %q", ErrMalformedSeed, s)
	}
	return h.ChunkKey(n), nil
}

// bracketed returns the text inside the leading balanced [...] of s.
func bracketed(s string) (string, error) {
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[1:i], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unterminated sample list", ErrMalformedSeed)
}

// splitSamples splits a sample list on top-level commas, or on dashes
// when there are none. Nested [...] samples stay intact.
func splitSamples(inner string) []string {
	inner = strings.TrimSpace(inner)
	if inner == "" || inner == "snip" {
		return nil
	}

	sep := '-'
	depth := 0
	for _, r := range inner {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				sep = ','
			}
		}
	}

	var tokens []string
	depth = 0
	start := 0
	for i, r := range inner {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case r == sep && depth == 0:
			tokens = appendToken(tokens, inner[start:i])
			start = i + 1
		}
	}
	return appendToken(tokens, inner[start:])
}

func appendToken(tokens []string, token string) []string {
	token = strings.TrimSpace(token)
	if token == "" {
		return tokens
	}
	return append(tokens, token)
}
