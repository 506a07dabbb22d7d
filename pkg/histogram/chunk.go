// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import "slices"

// MaxSamples is the reservoir capacity of a Chunk.
const MaxSamples = 3

// Chunk is one histogram bucket: an exact count plus the first
// MaxSamples samples recorded into it, in arrival order.
type Chunk[S any] struct {
	count   int64
	samples []S
}

// NewChunk builds a chunk with a preset count and samples. Samples beyond
// MaxSamples are dropped.
func NewChunk[S any](count int64, samples ...S) Chunk[S] {
	if len(samples) > MaxSamples {
		samples = samples[:MaxSamples]
	}
	return Chunk[S]{count: count, samples: slices.Clone(samples)}
}

// Record counts one observation and keeps it if the reservoir has room.
func (c *Chunk[S]) Record(sample S) {
	c.count++
	if len(c.samples) < MaxSamples {
		c.samples = append(c.samples, sample)
	}
}

// Count returns the exact number of observations.
func (c Chunk[S]) Count() int64 {
	return c.count
}

// Samples returns a copy of the reservoir.
func (c Chunk[S]) Samples() []S {
	return slices.Clone(c.samples)
}

// Equal reports whether c and other hold the same count. Reservoir
// contents do not take part in chunk identity.
func (c Chunk[S]) Equal(other Chunk[S]) bool {
	return c.count == other.count
}

func (c Chunk[S]) clone() Chunk[S] {
	return Chunk[S]{count: c.count, samples: slices.Clone(c.samples)}
}
