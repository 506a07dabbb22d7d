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
	"strings"

	"github.com/AleutianAI/graphstats/pkg/histogram"
	"github.com/AleutianAI/graphstats/services/stats/graph"
)

// RelTypesName is the registered name of the relationship type job.
const RelTypesName = "reltypes"

// RelTypesFactory creates RelTypes jobs. It takes no arguments.
type RelTypesFactory struct{}

func (RelTypesFactory) Name() string     { return RelTypesName }
func (RelTypesFactory) ArgsHelp() string { return "- Aggregates information about relationship types" }

func (RelTypesFactory) New(src graph.Source, args []string, opts Options) (Job, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("%w: %s takes no arguments", ErrInvalidArgs, RelTypesName)
	}
	return NewRelTypes(src, opts), nil
}

// RelTypes counts relationships per type. Each relationship is counted
// once, from its start node.
type RelTypes struct {
	scan    scanner
	total   histogram.Counter
	perType *histogram.KeyedCounter[string]
}

// NewRelTypes creates the job.
func NewRelTypes(src graph.Source, opts Options) *RelTypes {
	return &RelTypes{
		scan:    scanner{job: RelTypesName, src: src, logger: opts.logger(RelTypesName)},
		perType: histogram.NewKeyedCounter[string](),
	}
}

func (j *RelTypes) Name() string { return RelTypesName }

func (j *RelTypes) Process(ctx context.Context) error {
	return j.scan.each(ctx, func(ctx context.Context, e graph.Entity) error {
		return j.scan.relationships(ctx, e, graph.Outgoing, func(rel graph.Relationship) error {
			j.perType.Inc(rel.Type())
			j.total.Inc()
			return nil
		})
	})
}

// Total returns the number of relationships counted so far.
func (j *RelTypes) Total() int64 { return j.total.Count() }

// Counts returns a copy of the per-type counts.
func (j *RelTypes) Counts() map[string]int64 { return j.perType.Snapshot() }

// Report writes "Total: n" followed by one row per type, sorted by name.
func (j *RelTypes) Report(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total: %d\n", j.total.Count())
	writeTypeTable(&sb, j.perType)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeTypeTable(sb *strings.Builder, counts *histogram.KeyedCounter[string]) {
	sb.WriteString("Type\t\tCount\n")
	for _, name := range histogram.SortedKeys(counts) {
		fmt.Fprintf(sb, "%s\t\t%d\n", name, counts.Get(name))
	}
}
