// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/graphstats/pkg/logging"
	"github.com/AleutianAI/graphstats/pkg/ux"
	"github.com/AleutianAI/graphstats/services/stats/cancel"
	"github.com/AleutianAI/graphstats/services/stats/graph"
	"github.com/AleutianAI/graphstats/services/stats/jobs"
	"github.com/AleutianAI/graphstats/services/stats/storage/badger"
)

// ErrJobAborted is returned by the run command when the job was aborted.
var ErrJobAborted = errors.New("job aborted")

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfg      Config
	logger   *logging.Logger
	printer  *ux.Printer
	registry *jobs.Registry
	metrics  *http.Server
}

func newApp(cfg Config, out io.Writer) (*app, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "graphstats",
		JSON:    cfg.Log.JSON,
	})
	a := &app{
		cfg:      cfg,
		logger:   logger,
		printer:  ux.NewPrinter(out, ux.DetectPersonality(cfg.Personality, out)),
		registry: jobs.DefaultRegistry(),
	}
	if cfg.MetricsAddr != "" {
		a.metrics = serveMetrics(cfg.MetricsAddr, logger.Slog())
	}
	return a, nil
}

func (a *app) Close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	_ = a.logger.Close()
}

// jobOptions returns the options for job, applying configured chunk sizes.
func (a *app) jobOptions(job string) jobs.Options {
	return jobs.Options{
		Logger:    a.logger.Slog(),
		ChunkSize: a.cfg.ChunkSize(job),
	}
}

func (a *app) newSupervisor() (*cancel.Supervisor, error) {
	return cancel.NewSupervisor(cancel.SupervisorConfig{Workers: a.cfg.Workers}, a.logger.Slog())
}

// isDocument reports whether target names a YAML graph document.
func isDocument(target string) bool {
	switch strings.ToLower(filepath.Ext(target)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// openSource opens target as a graph source.
//
// Description:
//
//	A .yaml/.yml file is loaded as a graph document. With the in-memory
//	store enabled the document is imported into an in-memory badger store,
//	otherwise it is scanned directly. Any other target is a badger store
//	directory.
//
// Outputs:
//
//	graph.Source - The source to scan.
//	func() error - Releases the source.
//	error - Non-nil if the target cannot be opened.
func (a *app) openSource(ctx context.Context, target string) (graph.Source, func() error, error) {
	noop := func() error { return nil }

	if !isDocument(target) {
		if a.cfg.Store.InMemory {
			return nil, nil, fmt.Errorf("--in-memory needs a graph document, got %q", target)
		}
		db, err := a.openStore(target)
		if err != nil {
			return nil, nil, err
		}
		return badger.NewGraphStore(db, a.logger.Slog()), db.Close, nil
	}

	g, err := loadDocumentFile(target)
	if err != nil {
		return nil, nil, err
	}
	if !a.cfg.Store.InMemory {
		return g, noop, nil
	}

	db, err := badger.OpenDB(a.cfg.BadgerConfig(""))
	if err != nil {
		return nil, nil, fmt.Errorf("open in-memory store: %w", err)
	}
	store := badger.NewGraphStore(db, a.logger.Slog())
	nodes, rels, err := store.Import(ctx, g)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("import %s: %w", target, err)
	}
	a.logger.Info("graph document imported", "path", target, "in_memory", db.InMemory(),
		"nodes", nodes, "relationships", rels)
	return store, db.Close, nil
}

func (a *app) openStore(path string) (*badger.DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open store: %s is not a directory", path)
	}
	cfg := a.cfg.BadgerConfig(path)
	cfg.Logger = a.logger.Slog()
	db, err := badger.OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	a.logger.Info("store opened", "path", db.Path(), "in_memory", db.InMemory())
	return db, nil
}

func loadDocumentFile(path string) (*graph.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph document: %w", err)
	}
	defer f.Close()
	g, err := graph.LoadDocument(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}
