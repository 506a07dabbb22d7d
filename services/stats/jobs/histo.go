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
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/AleutianAI/graphstats/pkg/histogram"
	"github.com/AleutianAI/graphstats/services/stats/graph"
)

const (
	// HistoName is the registered name of the relationships-per-node job.
	HistoName = "histo"

	// DefaultHistoChunkSize is the bucket width when none is configured.
	DefaultHistoChunkSize int64 = 5
)

// HistoFactory creates Histo jobs. Arguments: [chunk_size] [seed_file].
type HistoFactory struct{}

func (HistoFactory) Name() string { return HistoName }

func (HistoFactory) ArgsHelp() string {
	return "[rel_chunk_size=5] [seed_file] - Prints histogram for relationships per node"
}

func (HistoFactory) New(src graph.Source, args []string, opts Options) (Job, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("%w: %s takes at most 2 arguments", ErrInvalidArgs, HistoName)
	}
	chunkSize, err := parseChunkSize(args, 0, opts.chunkSize(DefaultHistoChunkSize))
	if err != nil {
		return nil, err
	}
	job, err := NewHisto(src, chunkSize, opts)
	if err != nil {
		return nil, err
	}
	if len(args) == 2 {
		if err := job.SeedFile(args[1]); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// Histo buckets nodes by their number of relationships.
//
// Every relationship is seen from both endpoints, so the histogram's
// weight total ("Total rels" in the report) counts endpoints and
// Relationships reports half of it. The per-type table counts distinct
// relationships, each once at its start node.
type Histo struct {
	scan    scanner
	hist    *histogram.Histogram[graph.ID]
	perType *histogram.KeyedCounter[string]
	nodes   atomic.Int64
}

// NewHisto creates the job. chunkSize must be at least 1.
func NewHisto(src graph.Source, chunkSize int64, opts Options) (*Histo, error) {
	hist, err := histogram.New[graph.ID](chunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return &Histo{
		scan:    scanner{job: HistoName, src: src, logger: opts.logger(HistoName)},
		hist:    hist,
		perType: histogram.NewKeyedCounter[string](),
	}, nil
}

// Seed pre-populates buckets from a rendered histogram.
func (j *Histo) Seed(r io.Reader) error {
	n, err := j.hist.Seed(r, parseID)
	if err != nil {
		return fmt.Errorf("%w: seed: %v", ErrInvalidArgs, err)
	}
	j.scan.logger.Info("histogram seeded", "buckets", n)
	return nil
}

// SeedFile pre-populates buckets from a file.
func (j *Histo) SeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open seed file: %v", ErrInvalidArgs, err)
	}
	defer f.Close()
	return j.Seed(f)
}

func parseID(s string) (graph.ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return graph.ID(n), err
}

func (j *Histo) Name() string { return HistoName }

func (j *Histo) Process(ctx context.Context) error {
	return j.scan.each(ctx, func(ctx context.Context, e graph.Entity) error {
		var degree int64
		var started []string
		err := j.scan.relationships(ctx, e, graph.Both, func(rel graph.Relationship) error {
			degree++
			if rel.Start() == e.ID() {
				started = append(started, rel.Type())
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, relType := range started {
			j.perType.Inc(relType)
		}
		j.nodes.Add(1)
		return j.hist.Record(e.ID(), degree)
	})
}

// Histogram exposes the underlying histogram.
func (j *Histo) Histogram() *histogram.Histogram[graph.ID] { return j.hist }

// Nodes returns the number of nodes scanned so far.
func (j *Histo) Nodes() int64 { return j.nodes.Load() }

// Relationships returns the number of distinct relationships seen so far.
func (j *Histo) Relationships() int64 { return j.hist.TotalCounts() / 2 }

// Report writes the histogram, the distinct relationship count and the
// per-type table.
func (j *Histo) Report(w io.Writer) error {
	if err := j.hist.Render(w, "Nodes", "Rels"); err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nDistinct relationships: %d\n", j.Relationships())
	writeTypeTable(&sb, j.perType)
	_, err := io.WriteString(w, sb.String())
	return err
}
