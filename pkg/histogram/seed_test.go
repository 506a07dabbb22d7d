// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func TestSeed_DashSeparatedSamples(t *testing.T) {
	h := mustNew[int64](t, 5)
	n, err := h.Seed(strings.NewReader("1 12 6-10 [4-8-15]\n2 3 0 [16]\n"), parseInt64)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chunk, ok := h.Chunk(2)
	require.True(t, ok)
	assert.Equal(t, int64(12), chunk.Count())
	assert.Equal(t, []int64{4, 8, 15}, chunk.Samples())

	zero, ok := h.Chunk(0)
	require.True(t, ok)
	assert.Equal(t, []int64{16}, zero.Samples())

	assert.Zero(t, h.TotalSamples())
}

func TestSeed_CommaSeparatedAndTrailingComma(t *testing.T) {
	h := mustNew[int64](t, 10)
	_, err := h.Seed(strings.NewReader("1 2 11-20 [5, 6,]\n"), parseInt64)
	require.NoError(t, err)

	chunk, ok := h.Chunk(2)
	require.True(t, ok)
	assert.Equal(t, []int64{5, 6}, chunk.Samples())
}

func TestSeed_RenderedReportRoundTrip(t *testing.T) {
	src := mustNew[int64](t, 5)
	for i, w := range []int64{0, 3, 7, 7, 7, 7, 21} {
		require.NoError(t, src.Record(int64(100+i), w))
	}

	var sb strings.Builder
	require.NoError(t, src.Render(&sb, "Nodes", "Rels"))

	dst := mustNew[int64](t, 5)
	n, err := dst.Seed(strings.NewReader(sb.String()), parseInt64)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	want := src.Chunks()
	got := dst.Chunks()
	require.Len(t, got, len(want))
	for key, chunk := range want {
		assert.True(t, chunk.Equal(got[key]), "key %d", key)
		assert.Equal(t, chunk.Samples(), got[key].Samples(), "key %d", key)
	}
}

func TestSeed_RedactedAndNilParser(t *testing.T) {
	h := mustNew[string](t, 10)
	_, err := h.Seed(strings.NewReader("1\t4\t\t1-10\t\t[snip]\t\t4\t\t40\t\t40\n"), nil)
	require.NoError(t, err)

	chunk, ok := h.Chunk(1)
	require.True(t, ok)
	assert.Equal(t, int64(4), chunk.Count())
	assert.Empty(t, chunk.Samples())
}

func TestSeed_ReplacesExistingChunk(t *testing.T) {
	h := mustNew[int64](t, 5)
	require.NoError(t, h.Record(1, 2))

	_, err := h.Seed(strings.NewReader("1 9 1-5 [7]"), parseInt64)
	require.NoError(t, err)

	chunk, _ := h.Chunk(1)
	assert.Equal(t, int64(9), chunk.Count())
	assert.Equal(t, []int64{7}, chunk.Samples())
	assert.Equal(t, int64(1), h.TotalSamples())
}

func TestSeed_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few columns", "1 2\n"},
		{"bad count", "1 x 1-5 [1]\n"},
		{"negative count", "1 -3 1-5 [1]\n"},
		{"bad range", "1 2 five [1]\n"},
		{"zero base", "1 2 0-4 [1]\n"},
		{"unterminated", "1 2 1-5 [1-2\n"},
		{"bad sample", "1 2 1-5 [a-b]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mustNew[int64](t, 5)
			_, err := h.Seed(strings.NewReader("\n"+tt.input), parseInt64)
			require.ErrorIs(t, err, ErrMalformedSeed)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestSplitSamples_Nested(t *testing.T) {
	assert.Equal(t, []string{"[1, 2]", "[3]"}, splitSamples("[1, 2], [3]"))
	assert.Equal(t, []string{"a", "b"}, splitSamples("a-b"))
	assert.Nil(t, splitSamples(" "))
}
