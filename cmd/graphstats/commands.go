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
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphstats/services/stats/cancel"
	"github.com/AleutianAI/graphstats/services/stats/jobs"
	"github.com/AleutianAI/graphstats/services/stats/storage/badger"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath       string
	logLevel         string
	logDir           string
	logJSON          bool
	personality      string
	metricsAddr      string
	inMemory         bool
	workers          int
	progressInterval time.Duration
}

// resolveConfig loads the config file and applies flags the user set.
func (f *globalFlags) resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = f.logDir
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = f.logJSON
	}
	if flags.Changed("personality") {
		cfg.Personality = f.personality
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if flags.Changed("in-memory") {
		cfg.Store.InMemory = f.inMemory
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("progress-interval") {
		cfg.ProgressInterval = f.progressInterval
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newRootCmd builds the command tree. in and out replace stdin and stdout.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var flags globalFlags

	// withApp resolves config, builds the app and closes it afterwards.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolveConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, out)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, a, args)
		}
	}

	shell := func(cmd *cobra.Command, a *app, args []string) error {
		return runShell(cmd.Context(), a, args[0], in)
	}

	root := &cobra.Command{
		Use:   "graphstats [store-path]",
		Short: "Interactive statistics over a property graph store",
		Long: `graphstats scans a property graph and reports relationship type counts,
relationships-per-node histograms and property type statistics.

The target is a badger store directory or a YAML graph document.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return withApp(shell)(cmd, args)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ./"+DefaultConfigPath+" if present)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.BoolVar(&flags.logJSON, "log-json", false, "write console logs as JSON")
	pf.StringVar(&flags.personality, "personality", "", "output style: full, standard, minimal, machine")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.BoolVar(&flags.inMemory, "in-memory", false, "import a graph document into an in-memory store before scanning")
	pf.IntVar(&flags.workers, "workers", cancel.DefaultWorkers, "concurrent job workers")
	pf.DurationVar(&flags.progressInterval, "progress-interval", 10*time.Second, "progress report interval for run (0 disables)")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell <store-path>",
			Short: "Start the interactive shell",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(shell),
		},
		&cobra.Command{
			Use:   "run <store-path> <job> [args...]",
			Short: "Run one job and print its report",
			Args:  cobra.MinimumNArgs(2),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				return runJobOnce(cmd.Context(), a, args[0], args[1], args[2:])
			}),
		},
		&cobra.Command{
			Use:   "import <store-path> <graph.yaml>",
			Short: "Load a YAML graph document into a badger store",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				return importDocument(cmd.Context(), a, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "jobs",
			Short: "List available jobs",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				for _, f := range a.registry.Factories() {
					a.printer.Plain(fmt.Sprintf("%s %s\n", f.Name(), f.ArgsHelp()))
				}
				return nil
			}),
		},
	)
	return root
}

func runShell(ctx context.Context, a *app, target string, in io.Reader) error {
	src, release, err := a.openSource(ctx, target)
	if err != nil {
		return err
	}
	defer release()

	sup, err := a.newSupervisor()
	if err != nil {
		return err
	}
	defer sup.Close()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	sh := &Shell{
		Target:     target,
		Source:     src,
		Registry:   a.registry,
		Supervisor: sup,
		Printer:    a.printer,
		Logger:     a.logger.Slog(),
		Options:    a.jobOptions,
		Interrupts: interrupts,
	}
	return sh.Run(ctx, in)
}

// runJobOnce runs one job to completion, printing progress periodically.
func runJobOnce(ctx context.Context, a *app, target, name string, args []string) error {
	src, release, err := a.openSource(ctx, target)
	if err != nil {
		return err
	}
	defer release()

	job, err := a.registry.New(name, src, args, a.jobOptions(name))
	if err != nil {
		return err
	}

	sup, err := a.newSupervisor()
	if err != nil {
		return err
	}
	defer sup.Close()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	return superviseJob(ctx, a, sup, job, interrupts)
}

// superviseJob starts job and waits, reporting every ProgressInterval.
func superviseJob(ctx context.Context, a *app, sup *cancel.Supervisor, job jobs.Job, interrupts <-chan os.Signal) error {
	run, err := sup.Start(ctx, job)
	if err != nil {
		return err
	}

	var tick <-chan time.Time
	if a.cfg.ProgressInterval > 0 {
		ticker := time.NewTicker(a.cfg.ProgressInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for waiting := true; waiting; {
		select {
		case <-run.Done():
			waiting = false
		case <-tick:
			a.printer.Info(fmt.Sprintf("Progress of job %s after %s:", job.Name(), run.Duration().Round(time.Second)))
			if err := writeReport(a, job); err != nil {
				return err
			}
		case <-interrupts:
			a.printer.Warning(fmt.Sprintf("Aborting job %s...", job.Name()))
			waiting = false
		}
	}

	state, err := run.Abort(context.Background())
	if err != nil {
		a.printer.Error(fmt.Sprintf("Job %s failed: %v", job.Name(), err))
		return err
	}
	if state == cancel.StateAborted {
		a.printer.Warning(fmt.Sprintf("Aborted job %s.", job.Name()))
		if rerr := writeReport(a, job); rerr != nil {
			return rerr
		}
		return ErrJobAborted
	}
	a.printer.Success(fmt.Sprintf("Job %s finished.", job.Name()))
	return writeReport(a, job)
}

func writeReport(a *app, job jobs.Job) error {
	var b strings.Builder
	if err := job.Report(&b); err != nil {
		return fmt.Errorf("report %s: %w", job.Name(), err)
	}
	a.printer.Plain(b.String())
	return nil
}

func importDocument(ctx context.Context, a *app, storePath, docPath string) error {
	g, err := loadDocumentFile(docPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(storePath, 0o750); err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	cfg := a.cfg.BadgerConfig(storePath)
	cfg.InMemory = false
	cfg.Path = storePath
	cfg.Logger = a.logger.Slog()
	db, err := badger.OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("open store %s: %w", storePath, err)
	}
	defer db.Close()

	store := badger.NewGraphStore(db, a.logger.Slog())
	nodes, rels, err := store.Import(ctx, g)
	if err != nil {
		return fmt.Errorf("import %s: %w", docPath, err)
	}
	total, totalRels, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	a.printer.Success(fmt.Sprintf("Imported %d nodes and %d relationships.", nodes, rels))
	a.printer.Box("Store "+db.Path(), fmt.Sprintf("nodes: %d\nrelationships: %d", total, totalRels))
	return nil
}
