// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jobs implements the statistics jobs run against a graph.Source.
//
// # Overview
//
// A Job scans every entity once, aggregating into counters and
// histograms it owns. While Process runs on a worker goroutine, Report may
// be called from any goroutine to render the current totals.
//
// Jobs are created by name through a Registry of Factories:
//
//	reltypes   relationship counts per type
//	histo      histogram of relationships per node
//	propstats  property counts and sizes per value kind
//
// # Cancellation
//
// Process checks its context once per entity and returns ctx.Err() when
// it ends. An entity is always processed completely; partial results are
// kept.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/samber/lo"

	"github.com/AleutianAI/graphstats/services/stats/graph"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidArgs is returned when job arguments cannot be parsed.
	ErrInvalidArgs = errors.New("invalid job arguments")

	// ErrUnknownJob is returned by Registry.Lookup for unregistered names.
	ErrUnknownJob = errors.New("no such job")

	// ErrDuplicateJob is returned when a name is registered twice.
	ErrDuplicateJob = errors.New("job already registered")
)

// -----------------------------------------------------------------------------
// Contracts
// -----------------------------------------------------------------------------

// Job is one statistics run.
type Job interface {
	// Name returns the registered job name.
	Name() string

	// Process scans the source. It blocks until the scan finishes, fails,
	// or ctx ends.
	Process(ctx context.Context) error

	// Report renders the current state. Safe to call while Process runs.
	Report(w io.Writer) error
}

// Options carries settings shared by all factories.
type Options struct {
	// Logger receives scan diagnostics. Nil discards them.
	Logger *slog.Logger

	// ChunkSize replaces the job's built-in default chunk size when no
	// chunk size argument is given. Zero keeps the built-in default.
	ChunkSize int64
}

func (o Options) logger(job string) *slog.Logger {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return logger.With(slog.String("component", "job"), slog.String("job", job))
}

func (o Options) chunkSize(fallback int64) int64 {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return fallback
}

// Factory creates jobs of one kind.
type Factory interface {
	Name() string

	// ArgsHelp describes the arguments, e.g. "[chunk_size=5] - ...".
	ArgsHelp() string

	New(src graph.Source, args []string, opts Options) (Job, error)
}

// Registry maps job names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding reltypes, histo and propstats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, f := range []Factory{RelTypesFactory{}, HistoFactory{}, PropStatsFactory{}} {
		// names are distinct constants
		_ = r.Register(f)
	}
	return r
}

// Register adds a factory.
func (r *Registry) Register(f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[f.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, f.Name())
	}
	r.factories[f.Name()] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return f, nil
}

// Factories returns all factories sorted by name.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factories := lo.Values(r.factories)
	slices.SortFunc(factories, func(a, b Factory) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		}
		return 0
	})
	return factories
}

// New looks up name and creates a job.
func (r *Registry) New(name string, src graph.Source, args []string, opts Options) (Job, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f.New(src, args, opts)
}

// parseChunkSize reads an optional positive chunk size argument.
func parseChunkSize(args []string, idx int, fallback int64) (int64, error) {
	if len(args) <= idx {
		return fallback, nil
	}
	n, err := strconv.ParseInt(args[idx], 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: chunk size must be a positive integer, got %q", ErrInvalidArgs, args[idx])
	}
	return n, nil
}
