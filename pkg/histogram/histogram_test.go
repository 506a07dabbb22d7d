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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew[S any](t *testing.T, chunkSize int64, opts ...Option[S]) *Histogram[S] {
	t.Helper()
	h, err := New[S](chunkSize, opts...)
	require.NoError(t, err)
	return h
}

func TestNew_RejectsInvalidChunkSize(t *testing.T) {
	for _, size := range []int64{0, -1, -100} {
		_, err := New[int](size)
		assert.ErrorIs(t, err, ErrInvalidChunkSize, "chunk size %d", size)
	}
}

func TestRecord_RejectsNegativeWeight(t *testing.T) {
	h := mustNew[int](t, 5)
	assert.ErrorIs(t, h.Record(1, -1), ErrNegativeWeight)
	assert.Zero(t, h.TotalSamples())
}

func TestChunkKey_ZeroWeight(t *testing.T) {
	for _, size := range []int64{1, 2, 5, 10, 1000} {
		h := mustNew[int](t, size)
		assert.Equal(t, int64(0), h.ChunkKey(0))
		assert.Equal(t, "0", h.RangeDescription(0))
		assert.Equal(t, int64(0), h.TopOfChunk(0))
	}
}

func TestChunkKey_WeightFallsInsideBucket(t *testing.T) {
	for _, size := range []int64{1, 2, 3, 5, 7, 10, 64} {
		h := mustNew[int](t, size)
		for w := int64(1); w <= 500; w++ {
			key := h.ChunkKey(w)
			base := h.CountBase(key)
			require.GreaterOrEqual(t, w, base, "size=%d w=%d", size, w)
			require.LessOrEqual(t, w, h.EndOfChunk(base), "size=%d w=%d", size, w)
		}
	}
}

func TestChunkKey_RoundTrip(t *testing.T) {
	for _, size := range []int64{1, 2, 3, 5, 10, 99} {
		h := mustNew[int](t, size)
		for key := int64(1); key <= 200; key++ {
			base := h.CountBase(key)
			require.Equal(t, key, h.ChunkKey(base), "size=%d key=%d base", size, key)
			require.Equal(t, key, h.ChunkKey(h.EndOfChunk(base)), "size=%d key=%d end", size, key)
		}
	}
}

func TestRecord_UpdatesTotalsAndChunks(t *testing.T) {
	h := mustNew[string](t, 10)
	require.NoError(t, h.Record("a", 0))
	require.NoError(t, h.Record("b", 3))
	require.NoError(t, h.Record("c", 10))
	require.NoError(t, h.Record("d", 11))

	assert.Equal(t, int64(4), h.TotalSamples())
	assert.Equal(t, int64(24), h.TotalCounts())

	chunks := h.Chunks()
	require.Len(t, chunks, 3)
	assert.Equal(t, int64(1), chunks[0].Count())
	assert.Equal(t, int64(2), chunks[1].Count())
	assert.Equal(t, []string{"b", "c"}, chunks[1].Samples())
	assert.Equal(t, []string{"d"}, chunks[2].Samples())
}

func TestChunk_ReservoirBounded(t *testing.T) {
	var c Chunk[int]
	for i := 0; i < 50; i++ {
		c.Record(i)
		require.LessOrEqual(t, len(c.Samples()), MaxSamples)
	}
	assert.Equal(t, int64(50), c.Count())
	assert.Equal(t, []int{0, 1, 2}, c.Samples())
}

func TestChunk_EqualityByCountOnly(t *testing.T) {
	a := NewChunk(4, "x", "y")
	b := NewChunk(4, "p", "q", "r")
	c := NewChunk(5, "x", "y")

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
}

func TestNewChunk_TruncatesSamples(t *testing.T) {
	c := NewChunk(9, 1, 2, 3, 4, 5)
	assert.Equal(t, []int{1, 2, 3}, c.Samples())
	assert.Equal(t, int64(9), c.Count())
}

func TestRows_DescendingWithRunningSums(t *testing.T) {
	h := mustNew[int](t, 5)
	weights := []int64{0, 0, 1, 4, 5, 6, 12, 12, 30}
	for i, w := range weights {
		require.NoError(t, h.Record(i, w))
	}

	rows := h.Rows()
	require.Len(t, rows, 5)

	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i-1].ChunkKey, rows[i].ChunkKey)
		assert.GreaterOrEqual(t, rows[i].Aggregate, rows[i-1].Aggregate)
		assert.GreaterOrEqual(t, rows[i].AggregateWeight, rows[i-1].AggregateWeight)
	}

	want := []Row[int]{
		{Rank: 1, ChunkKey: 6, Count: 1, Range: "26-30", Samples: []int{8}, Aggregate: 1, Weight: 30, AggregateWeight: 30},
		{Rank: 2, ChunkKey: 3, Count: 2, Range: "11-15", Samples: []int{6, 7}, Aggregate: 3, Weight: 30, AggregateWeight: 60},
		{Rank: 3, ChunkKey: 2, Count: 1, Range: "6-10", Samples: []int{5}, Aggregate: 4, Weight: 10, AggregateWeight: 70},
		{Rank: 4, ChunkKey: 1, Count: 3, Range: "1-5", Samples: []int{2, 3, 4}, Aggregate: 7, Weight: 15, AggregateWeight: 85},
		{Rank: 5, ChunkKey: 0, Count: 2, Range: "0", Samples: []int{0, 1}, Aggregate: 9, Weight: 0, AggregateWeight: 85},
	}
	assert.Equal(t, want, rows)
}

func TestRender_Empty(t *testing.T) {
	h := mustNew[int](t, 5)
	var sb strings.Builder
	require.NoError(t, h.Render(&sb, "Nodes", "Rels"))

	assert.Equal(t,
		"Total nodes: 0\n"+
			"Total rels: 0\n"+
			"Rank\tNodes\t\tRels\t\tSamples\t\tAggregate from top\t\tWeight\t\tAggregate weight\n",
		sb.String())
}

func TestRender_ZeroBucketOnly(t *testing.T) {
	h := mustNew[int64](t, 10)
	require.NoError(t, h.Record(7, 0))

	var sb strings.Builder
	require.NoError(t, h.Render(&sb, "Nodes", "Rels"))

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "1\t1\t\t0\t\t[7]\t\t1\t\t0\t\t0", lines[3])
}

func TestRender_UnitChunks(t *testing.T) {
	h := mustNew[int](t, 1)
	require.NoError(t, h.Record(1, 2))
	require.NoError(t, h.Record(2, 3))

	rows := h.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(3), rows[0].ChunkKey)
	assert.Equal(t, "3-3", rows[0].Range)
	assert.Equal(t, int64(1), rows[0].Count)
	assert.Equal(t, int64(2), rows[1].ChunkKey)
	assert.Equal(t, "2-2", rows[1].Range)
	assert.Equal(t, int64(1), rows[1].Count)
}

func TestRender_RedactedSamples(t *testing.T) {
	h := mustNew[string](t, 10, WithoutSamples[string]())
	require.NoError(t, h.Record("secret", 4))

	var sb strings.Builder
	require.NoError(t, h.Render(&sb, "Objects", "Bytes"))

	assert.Contains(t, sb.String(), "1\t1\t\t1-10\t\t[snip]\t\t1\t\t10\t\t10\n")
	assert.NotContains(t, sb.String(), "secret")
	assert.Nil(t, h.Rows()[0].Samples)
}

func TestRender_ArraySamplesElementWise(t *testing.T) {
	h := mustNew[[]int32](t, 5)
	require.NoError(t, h.Record([]int32{1, 2}, 3))
	require.NoError(t, h.Record([]int32{3}, 3))

	var sb strings.Builder
	require.NoError(t, h.Render(&sb, "Values", "Bytes"))
	assert.Contains(t, sb.String(), "\t\t[[1, 2], [3]]\t\t")
}

func TestFormatSample(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"int", FormatSample(42), "42"},
		{"string", FormatSample("abc"), "abc"},
		{"slice", FormatSample([]int64{1, 2, 3}), "[1, 2, 3]"},
		{"array", FormatSample([2]bool{true, false}), "[true, false]"},
		{"bytes", FormatSample([]byte{1, 255}), "[1, 255]"},
		{"stringer", FormatSample(stringerID(9)), "id-9"},
		{"nested", FormatSample([][]string{{"a"}, {"b", "c"}}), "[[a], [b, c]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

type stringerID int

func (s stringerID) String() string { return "id-" + strconv.Itoa(int(s)) }

func TestWithSampleFormatter(t *testing.T) {
	h := mustNew[int](t, 5, WithSampleFormatter(func(i int) string { return "#" + strconv.Itoa(i) }))
	require.NoError(t, h.Record(3, 1))
	assert.Contains(t, h.String(), "[#3]")
}

func TestPutChunk_DoesNotChangeTotals(t *testing.T) {
	h := mustNew[int](t, 5)
	h.PutChunk(2, NewChunk(10, 1, 2))

	assert.Zero(t, h.TotalSamples())
	assert.Zero(t, h.TotalCounts())
	chunk, ok := h.Chunk(2)
	require.True(t, ok)
	assert.Equal(t, int64(10), chunk.Count())
}

func TestHistogram_ConcurrentRenderDuringRecord(t *testing.T) {
	h := mustNew[int](t, 3)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			_ = h.Record(i, int64(i%50))
		}
	}()

	for i := 0; i < 100; i++ {
		var sb strings.Builder
		require.NoError(t, h.Render(&sb, "Nodes", "Rels"))
	}
	wg.Wait()

	assert.Equal(t, int64(2000), h.TotalSamples())
	var sum int64
	for _, c := range h.Chunks() {
		sum += c.Count()
	}
	assert.Equal(t, int64(2000), sum)
}
