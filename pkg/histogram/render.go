// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Redacted replaces the sample column of histograms built WithoutSamples.
const Redacted = "[snip]"

// Row is one line of the ranked report.
type Row[S any] struct {
	// Rank is 1 for the highest chunk key.
	Rank int

	ChunkKey int64

	// Count is the exact number of samples in the bucket.
	Count int64

	// Range is "0" or "base-top".
	Range string

	// Samples is nil when the histogram redacts samples.
	Samples []S

	// Aggregate is the running sum of Count from the top row down.
	Aggregate int64

	// Weight is Count times the bucket's top weight.
	Weight int64

	// AggregateWeight is the running sum of Weight.
	AggregateWeight int64
}

// Rows ranks the buckets in descending chunk key order.
func (h *Histogram[S]) Rows() []Row[S] {
	chunks, _, _ := h.snapshot()
	return h.rows(chunks)
}

func (h *Histogram[S]) rows(chunks map[int64]Chunk[S]) []Row[S] {
	keys := lo.Keys(chunks)
	slices.SortFunc(keys, func(a, b int64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})

	rows := make([]Row[S], 0, len(keys))
	var aggregate, aggregateWeight int64
	for i, key := range keys {
		chunk := chunks[key]
		weight := chunk.count * h.TopOfChunk(key)
		aggregate += chunk.count
		aggregateWeight += weight

		row := Row[S]{
			Rank:            i + 1,
			ChunkKey:        key,
			Count:           chunk.count,
			Range:           h.RangeDescription(key),
			Aggregate:       aggregate,
			Weight:          weight,
			AggregateWeight: aggregateWeight,
		}
		if h.includeSamples {
			row.Samples = chunk.samples
		}
		rows = append(rows, row)
	}
	return rows
}

// Render writes the report for the current state.
//
// Description:
//
//	The header names the totals with the lower-cased nouns, then a column
//	header, then one tab-separated row per bucket:
//
//	  Total nodes: 3
//	  Total rels: 12
//	  Rank	Nodes		Rels		Samples		Aggregate from top		Weight		Aggregate weight
//	  1	1		6-10		[7]		1		10		10
//
// Inputs:
//
//	w - Destination.
//	sampleNoun - Plural noun for samples, e.g. "Nodes".
//	countNoun - Plural noun for weights, e.g. "Rels".
//
// Outputs:
//
//	error - The first write error.
func (h *Histogram[S]) Render(w io.Writer, sampleNoun, countNoun string) error {
	chunks, totalSamples, totalCounts := h.snapshot()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total %s: %d\n", strings.ToLower(sampleNoun), totalSamples)
	fmt.Fprintf(&sb, "Total %s: %d\n", strings.ToLower(countNoun), totalCounts)
	fmt.Fprintf(&sb, "Rank\t%s\t\t%s\t\tSamples\t\tAggregate from top\t\tWeight\t\tAggregate weight\n", sampleNoun, countNoun)

	for _, row := range h.rows(chunks) {
		samples := Redacted
		if h.includeSamples {
			samples = h.formatSamples(row.Samples)
		}
		fmt.Fprintf(&sb, "%d\t%d\t\t%s\t\t%s\t\t%d\t\t%d\t\t%d\n",
			row.Rank, row.Count, row.Range, samples, row.Aggregate, row.Weight, row.AggregateWeight)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders with generic nouns.
func (h *Histogram[S]) String() string {
	var sb strings.Builder
	_ = h.Render(&sb, "Samples", "Counts")
	return sb.String()
}

func (h *Histogram[S]) formatSamples(samples []S) string {
	parts := lo.Map(samples, func(s S, _ int) string {
		return h.format(s)
	})
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatSample renders one sample. fmt.Stringer values use String, arrays
// and slices render element by element as "[a, b]", anything else uses
// fmt.Sprint.
func FormatSample[S any](sample S) string {
	return formatValue(reflect.ValueOf(any(sample)))
}

var stringerType = reflect.TypeFor[fmt.Stringer]()

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	if v.Type().Implements(stringerType) && v.CanInterface() {
		if v.Kind() != reflect.Pointer || !v.IsNil() {
			return v.Interface().(fmt.Stringer).String()
		}
	}
	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Interface:
		if v.IsNil() {
			return "<nil>"
		}
		return formatValue(v.Elem())
	}
	if v.CanInterface() {
		return fmt.Sprint(v.Interface())
	}
	return v.String()
}
