// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package histogram implements streaming, fixed-width bucketing of
// weighted samples and the ranked report rendered from it.
//
// # Bucketing
//
// A weight w maps to a chunk key:
//
//	w == 0  -> key 0 (the zero bucket, exactly weight 0)
//	w >= 1  -> key (w-1)/chunkSize + 1
//
// Key k >= 1 covers weights [(k-1)*chunkSize+1, (k-1)*chunkSize+chunkSize].
//
// # Thread Safety
//
// A Histogram has one writer (the job scanning the graph) and any number
// of readers rendering progress. Each call is individually consistent;
// there is no consistency between a Histogram and counters kept next to it.
package histogram

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidChunkSize is returned when the chunk size is below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")

	// ErrNegativeWeight is returned when a negative weight is recorded.
	ErrNegativeWeight = errors.New("weight must not be negative")
)

// Histogram buckets samples by weight into Chunks of chunkSize width.
type Histogram[S any] struct {
	chunkSize      int64
	includeSamples bool
	format         func(S) string

	mu           sync.RWMutex
	chunks       map[int64]*Chunk[S]
	totalSamples int64
	totalCounts  int64
}

// Option configures a Histogram.
type Option[S any] func(*Histogram[S])

// WithoutSamples redacts reservoir contents when rendering.
func WithoutSamples[S any]() Option[S] {
	return func(h *Histogram[S]) {
		h.includeSamples = false
	}
}

// WithSampleFormatter overrides how one sample is rendered.
func WithSampleFormatter[S any](format func(S) string) Option[S] {
	return func(h *Histogram[S]) {
		if format != nil {
			h.format = format
		}
	}
}

// New creates an empty Histogram.
//
// Inputs:
//
//	chunkSize - Bucket width. Must be >= 1.
//	opts - Optional rendering settings.
//
// Outputs:
//
//	*Histogram[S] - The histogram.
//	error - ErrInvalidChunkSize if chunkSize < 1.
func New[S any](chunkSize int64, opts ...Option[S]) (*Histogram[S], error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	h := &Histogram[S]{
		chunkSize:      chunkSize,
		includeSamples: true,
		format:         FormatSample[S],
		chunks:         make(map[int64]*Chunk[S]),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Record adds one observation of sample with the given weight.
func (h *Histogram[S]) Record(sample S, weight int64) error {
	if weight < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeWeight, weight)
	}
	key := h.ChunkKey(weight)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalSamples++
	h.totalCounts += weight
	chunk, ok := h.chunks[key]
	if !ok {
		chunk = &Chunk[S]{}
		h.chunks[key] = chunk
	}
	chunk.Record(sample)
	return nil
}

// ChunkKey returns the bucket key for weight. Weight 0 maps to key 0.
func (h *Histogram[S]) ChunkKey(weight int64) int64 {
	if weight == 0 {
		return 0
	}
	return (weight-1)/h.chunkSize + 1
}

// CountBase returns the lowest weight covered by key (key >= 1).
func (h *Histogram[S]) CountBase(key int64) int64 {
	return (key-1)*h.chunkSize + 1
}

// EndOfChunk returns the highest weight of the bucket starting at base.
func (h *Histogram[S]) EndOfChunk(base int64) int64 {
	return base + h.chunkSize - 1
}

// TopOfChunk returns the highest weight covered by key, 0 for the zero bucket.
func (h *Histogram[S]) TopOfChunk(key int64) int64 {
	if key == 0 {
		return 0
	}
	return h.EndOfChunk(h.CountBase(key))
}

// RangeDescription renders key's weight range: "0" for the zero bucket,
// "base-top" otherwise.
func (h *Histogram[S]) RangeDescription(key int64) string {
	if key == 0 {
		return "0"
	}
	base := h.CountBase(key)
	return fmt.Sprintf("%d-%d", base, h.EndOfChunk(base))
}

// ChunkSize returns the bucket width.
func (h *Histogram[S]) ChunkSize() int64 {
	return h.chunkSize
}

// TotalSamples returns the number of Record calls.
func (h *Histogram[S]) TotalSamples() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalSamples
}

// TotalCounts returns the sum of recorded weights.
func (h *Histogram[S]) TotalCounts() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalCounts
}

// Chunks returns a copy of the buckets keyed by chunk key.
func (h *Histogram[S]) Chunks() map[int64]Chunk[S] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int64]Chunk[S], len(h.chunks))
	for key, chunk := range h.chunks {
		out[key] = chunk.clone()
	}
	return out
}

// Chunk returns a copy of the bucket at key.
func (h *Histogram[S]) Chunk(key int64) (Chunk[S], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	chunk, ok := h.chunks[key]
	if !ok {
		return Chunk[S]{}, false
	}
	return chunk.clone(), true
}

// PutChunk replaces the bucket at key. Totals are not changed.
func (h *Histogram[S]) PutChunk(key int64, chunk Chunk[S]) {
	c := chunk.clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks[key] = &c
}

func (h *Histogram[S]) snapshot() (chunks map[int64]Chunk[S], totalSamples, totalCounts int64) {
	h.mu.RLock()
	chunks = make(map[int64]Chunk[S], len(h.chunks))
	for key, chunk := range h.chunks {
		chunks[key] = chunk.clone()
	}
	totalSamples, totalCounts = h.totalSamples, h.totalCounts
	h.mu.RUnlock()
	return chunks, totalSamples, totalCounts
}
