// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jobs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/AleutianAI/graphstats/pkg/histogram"
	"github.com/AleutianAI/graphstats/services/stats/graph"
)

const (
	// PropStatsName is the registered name of the property statistics job.
	PropStatsName = "propstats"

	// DefaultPropStatsChunkSize is the byte bucket width when none is configured.
	DefaultPropStatsChunkSize int64 = 10
)

// PropStatsFactory creates PropStats jobs. Arguments: [chunk_size].
type PropStatsFactory struct{}

func (PropStatsFactory) Name() string     { return PropStatsName }
func (PropStatsFactory) ArgsHelp() string { return "[chunk_size=10] - Print stats about properties" }

func (PropStatsFactory) New(src graph.Source, args []string, opts Options) (Job, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("%w: %s takes at most 1 argument", ErrInvalidArgs, PropStatsName)
	}
	chunkSize, err := parseChunkSize(args, 0, opts.chunkSize(DefaultPropStatsChunkSize))
	if err != nil {
		return nil, err
	}
	return NewPropStats(src, chunkSize, opts)
}

// PropStats counts node properties and outgoing relationship properties
// per value kind. Lengthable kinds also track max and summed length and a
// length histogram whose samples are redacted.
type PropStats struct {
	scan      scanner
	chunkSize int64

	properties  atomic.Int64
	occurrences *histogram.KeyedCounter[graph.Kind]
	maxLength   *histogram.KeyedCounter[graph.Kind]
	sumLength   *histogram.KeyedCounter[graph.Kind]

	mu         sync.RWMutex
	histograms map[graph.Kind]*histogram.Histogram[graph.Value]
}

// KindStats is the per-kind summary of a PropStats run.
type KindStats struct {
	Kind        graph.Kind
	Occurrences int64
	MaxLength   int64
	SumLength   int64
}

// AvgLength returns the integer mean length, 0 for no occurrences.
func (k KindStats) AvgLength() int64 {
	if k.Occurrences == 0 {
		return 0
	}
	return k.SumLength / k.Occurrences
}

// NewPropStats creates the job. chunkSize must be at least 1.
func NewPropStats(src graph.Source, chunkSize int64, opts Options) (*PropStats, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: %v: got %d", ErrInvalidArgs, histogram.ErrInvalidChunkSize, chunkSize)
	}
	return &PropStats{
		scan:        scanner{job: PropStatsName, src: src, logger: opts.logger(PropStatsName)},
		chunkSize:   chunkSize,
		occurrences: histogram.NewKeyedCounter[graph.Kind](),
		maxLength:   histogram.NewKeyedCounter[graph.Kind](),
		sumLength:   histogram.NewKeyedCounter[graph.Kind](),
		histograms:  make(map[graph.Kind]*histogram.Histogram[graph.Value]),
	}, nil
}

func (j *PropStats) Name() string { return PropStatsName }

func (j *PropStats) Process(ctx context.Context) error {
	return j.scan.each(ctx, func(ctx context.Context, e graph.Entity) error {
		// a node that vanishes while its relationships are read counts nothing
		var rels []graph.Relationship
		err := j.scan.relationships(ctx, e, graph.Outgoing, func(rel graph.Relationship) error {
			rels = append(rels, rel)
			return nil
		})
		if err != nil {
			return err
		}
		if err := j.countProperties(e, "node", e.ID()); err != nil {
			return err
		}
		for _, rel := range rels {
			if err := j.countProperties(rel, "relationship", rel.ID()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *PropStats) countProperties(pc graph.PropertyContainer, what string, id graph.ID) error {
	for _, key := range pc.PropertyKeys() {
		value, err := pc.Property(key)
		if err != nil {
			if errors.Is(err, graph.ErrPropertyNotFound) {
				j.scan.skip("property vanished during scan", err)
				continue
			}
			return fmt.Errorf("property %q of %s %d: %w", key, what, id, err)
		}
		if err := j.record(value); err != nil {
			return fmt.Errorf("property %q of %s %d: %w", key, what, id, err)
		}
	}
	return nil
}

func (j *PropStats) record(value graph.Value) error {
	kind := value.Kind()
	if kind == graph.KindInvalid {
		return graph.ErrUnclassifiable
	}
	j.properties.Add(1)
	j.occurrences.Inc(kind)
	if !kind.Lengthable() {
		return nil
	}

	length, err := value.Length()
	if err != nil {
		return err
	}
	j.sumLength.Add(kind, length)
	if length > j.maxLength.Get(kind) {
		j.maxLength.Set(kind, length)
	}

	hist, err := j.histogramFor(kind)
	if err != nil {
		return err
	}
	return hist.Record(value, length)
}

func (j *PropStats) histogramFor(kind graph.Kind) (*histogram.Histogram[graph.Value], error) {
	j.mu.RLock()
	hist, ok := j.histograms[kind]
	j.mu.RUnlock()
	if ok {
		return hist, nil
	}

	hist, err := histogram.New[graph.Value](j.chunkSize, histogram.WithoutSamples[graph.Value]())
	if err != nil {
		return nil, err
	}
	j.mu.Lock()
	j.histograms[kind] = hist
	j.mu.Unlock()
	return hist, nil
}

// Histogram returns the length histogram of kind, if any value of that
// kind was seen.
func (j *PropStats) Histogram(kind graph.Kind) (*histogram.Histogram[graph.Value], bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	hist, ok := j.histograms[kind]
	return hist, ok
}

// Properties returns the number of properties counted so far.
func (j *PropStats) Properties() int64 { return j.properties.Load() }

// Stats returns per-kind summaries sorted by kind name.
func (j *PropStats) Stats() []KindStats {
	occurrences := j.occurrences.Snapshot()
	stats := lo.MapToSlice(occurrences, func(kind graph.Kind, n int64) KindStats {
		return KindStats{
			Kind:        kind,
			Occurrences: n,
			MaxLength:   j.maxLength.Get(kind),
			SumLength:   j.sumLength.Get(kind),
		}
	})
	slices.SortFunc(stats, func(a, b KindStats) int {
		return cmp.Compare(a.Kind.String(), b.Kind.String())
	})
	return stats
}

// Report writes the property total, the per-kind table and one length
// histogram per lengthable kind.
func (j *PropStats) Report(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total number of properties: %d\n", j.properties.Load())
	sb.WriteString("Type\t\tCount\n")

	stats := j.Stats()
	for _, s := range stats {
		suffix := ""
		if s.Kind.Lengthable() {
			suffix = fmt.Sprintf(" (maxlen %dB, avg %dB)", s.MaxLength, s.AvgLength())
		}
		fmt.Fprintf(&sb, "%s\t\t%d%s\n", s.Kind, s.Occurrences, suffix)
	}
	sb.WriteString("\n")

	for _, s := range stats {
		hist, ok := j.Histogram(s.Kind)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "Histogram for %s\n", s.Kind)
		if err := hist.Render(&sb, "Objects", "Bytes"); err != nil {
			return err
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
