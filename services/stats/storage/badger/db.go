// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger stores graphs in BadgerDB and scans them as a graph.Source.
//
// The package has two layers:
//
//   - Open, OpenDB and GCRunner manage the database lifecycle
//   - GraphStore maps nodes, relationships and adjacency onto keys
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrInvalidConfig is returned for unusable configurations.
var ErrInvalidConfig = errors.New("invalid badger configuration")

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and --in-memory runs.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil silences them.
	Logger *slog.Logger

	// NumVersionsToKeep is the number of versions retained per key.
	NumVersionsToKeep int

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage fraction that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns the settings used for on-disk stores.
func DefaultConfig() Config {
	return Config{
		SyncWrites:        false,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig returns settings for a throwaway in-memory store.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		NumVersionsToKeep: 1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("%w: path is required for a persistent database", ErrInvalidConfig)
	}
	if c.NumVersionsToKeep < 0 {
		return fmt.Errorf("%w: negative NumVersionsToKeep", ErrInvalidConfig)
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("%w: negative GCInterval", ErrInvalidConfig)
	}
	if c.GCDiscardRatio < 0 || c.GCDiscardRatio > 1 {
		return fmt.Errorf("%w: GCDiscardRatio must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens a raw BadgerDB handle.
//
// Description:
//
//	Creates the directory for persistent databases. BadgerDB's info
//	output is demoted to debug; it is chatty on open and close.
//
// Inputs:
//
//	cfg - Database configuration.
//
// Outputs:
//
//	*badger.DB - The opened database. Caller must Close it.
//	error - ErrInvalidConfig or an open failure.
//
// Thread Safety: The returned *badger.DB is safe for concurrent use.
func Open(cfg Config) (*badger.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	versions := cfg.NumVersionsToKeep
	if versions == 0 {
		versions = 1
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(versions)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With(slog.String("component", "badger"))})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// GCRunner runs value log garbage collection on an interval.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewGCRunner creates a stopped runner.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db must not be nil", ErrInvalidConfig)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: ratio must be between 0 and 1", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the GC loop. It stops when ctx ends or Stop is called.
func (r *GCRunner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (r *GCRunner) Stop() {
	r.once.Do(func() {
		if r.cancel == nil {
			close(r.done)
			return
		}
		r.cancel()
		<-r.done
	})
}

func (r *GCRunner) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// RunOnce triggers a single GC pass.
func (r *GCRunner) RunOnce() {
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		r.logger.Debug("badger value log GC completed")
	case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
	default:
		r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
	}
}

// DB is a BadgerDB handle with a managed GC loop.
type DB struct {
	*badger.DB
	gcRunner *GCRunner
	path     string
	inMemory bool
	closed   sync.Once
	closeErr error
}

// OpenDB opens a database and starts GC when configured.
//
// Inputs:
//
//	cfg - Database configuration.
//
// Outputs:
//
//	*DB - The database. Call Close when done.
//	error - Non-nil if the database cannot be opened.
func OpenDB(cfg Config) (*DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	wrapped := &DB{DB: db, path: cfg.Path, inMemory: cfg.InMemory}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		wrapped.gcRunner = runner
		runner.Start(context.Background())
	}
	return wrapped, nil
}

// OpenInMemory opens an empty in-memory database.
func OpenInMemory() (*DB, error) {
	return OpenDB(InMemoryConfig())
}

// Close stops GC and closes the database. Safe to call more than once.
func (d *DB) Close() error {
	d.closed.Do(func() {
		if d.gcRunner != nil {
			d.gcRunner.Stop()
		}
		d.closeErr = d.DB.Close()
	})
	return d.closeErr
}

// Path returns the directory, or "" for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the database lives in RAM.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// WithTxn runs fn in a read-write transaction and commits if fn succeeds.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
