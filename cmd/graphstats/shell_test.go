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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphstats/pkg/ux"
	"github.com/AleutianAI/graphstats/services/stats/cancel"
	"github.com/AleutianAI/graphstats/services/stats/graph"
	"github.com/AleutianAI/graphstats/services/stats/jobs"
)

// gateJob blocks until its context ends or release is closed.
type gateJob struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateJob) Name() string { return "gate" }

func (g *gateJob) Process(ctx context.Context) error {
	g.once.Do(func() { close(g.started) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.release:
		return nil
	}
}

func (g *gateJob) Report(w io.Writer) error {
	_, err := io.WriteString(w, "gate progress\n")
	return err
}

type gateFactory struct{ job *gateJob }

func (f gateFactory) Name() string     { return "gate" }
func (f gateFactory) ArgsHelp() string { return "- blocks until aborted" }
func (f gateFactory) New(graph.Source, []string, jobs.Options) (jobs.Job, error) {
	return f.job, nil
}

func newGateJob() *gateJob {
	return &gateJob{started: make(chan struct{}), release: make(chan struct{})}
}

func testGraph(t *testing.T) *graph.Memory {
	t.Helper()
	g := graph.NewMemory()
	for id := graph.ID(1); id <= 3; id++ {
		require.NoError(t, g.AddNode(id, graph.Properties{"name": graph.String(fmt.Sprint("n", id))}))
	}
	require.NoError(t, g.AddRelationship(10, 1, 2, "KNOWS", nil))
	require.NoError(t, g.AddRelationship(11, 2, 3, "KNOWS", nil))
	require.NoError(t, g.AddRelationship(12, 1, 3, "LIKES", nil))
	return g
}

func newTestShell(t *testing.T, registry *jobs.Registry, out *bytes.Buffer) *Shell {
	t.Helper()
	sup, err := cancel.NewSupervisor(cancel.SupervisorConfig{Workers: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(sup.Close)
	return &Shell{
		Target:     "test.yaml",
		Source:     testGraph(t),
		Registry:   registry,
		Supervisor: sup,
		Printer:    ux.NewPrinter(out, ux.PersonalityMachine),
		Logger:     slog.New(slog.DiscardHandler),
	}
}

func TestShell_Builtins(t *testing.T) {
	var out bytes.Buffer
	sh := newTestShell(t, jobs.DefaultRegistry(), &out)

	in := strings.NewReader("\nhelp\nfoo\nlast\nexit\nreltypes\n")
	require.NoError(t, sh.Run(context.Background(), in))

	got := out.String()
	assert.Contains(t, got, "Target store: test.yaml")
	assert.Equal(t, 2, strings.Count(got, "Available jobs:"))
	assert.Contains(t, got, "  histo ")
	assert.Contains(t, got, "  exit or quit   Exit\n")
	assert.Contains(t, got, "ERROR: No such job or command: foo\n")
	assert.Contains(t, got, "No job has run yet.\n")
	assert.NotContains(t, got, "Total:", "commands after exit are not run")
}

func TestShell_RunsJobToCompletion(t *testing.T) {
	var out bytes.Buffer
	sh := newTestShell(t, jobs.DefaultRegistry(), &out)

	require.NoError(t, sh.Run(context.Background(), strings.NewReader("reltypes\nlast\n")))

	got := out.String()
	assert.Contains(t, got, `Hit ENTER for progress, or type "abort<ENTER>" to abort the command.`)
	assert.Contains(t, got, "OK: Job reltypes finished.\n")
	assert.Equal(t, 2, strings.Count(got, "Total: 3\n"), "finish report plus last")
	assert.Contains(t, got, "KNOWS\t\t2\n")
	assert.Contains(t, got, "LIKES\t\t1\n")
}

func TestShell_BadJobArgs(t *testing.T) {
	var out bytes.Buffer
	sh := newTestShell(t, jobs.DefaultRegistry(), &out)

	require.NoError(t, sh.Run(context.Background(), strings.NewReader("histo zero\n")))
	assert.Contains(t, out.String(), "ERROR: ")
	assert.NotContains(t, out.String(), "finished")
}

func TestShell_ProgressAndAbort(t *testing.T) {
	job := newGateJob()
	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register(gateFactory{job: job}))

	var out bytes.Buffer
	sh := newTestShell(t, registry, &out)

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- sh.Run(context.Background(), pr) }()

	_, err := io.WriteString(pw, "gate\n")
	require.NoError(t, err)
	<-job.started

	_, err = io.WriteString(pw, "\n")
	require.NoError(t, err)
	_, err = io.WriteString(pw, "abort\n")
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}

	got := out.String()
	progress := strings.Index(got, "gate progress")
	aborting := strings.Index(got, "WARN: Aborting job gate...\n")
	aborted := strings.Index(got, "WARN: Aborted job gate.\n")
	require.True(t, progress >= 0 && aborting >= 0 && aborted >= 0, got)
	assert.Less(t, progress, aborting)
	assert.Less(t, aborting, aborted)
	assert.NotContains(t, got, "finished")
}

func TestShell_InterruptAborts(t *testing.T) {
	job := newGateJob()
	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register(gateFactory{job: job}))

	var out bytes.Buffer
	sh := newTestShell(t, registry, &out)
	interrupts := make(chan os.Signal, 1)
	sh.Interrupts = interrupts

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- sh.Run(context.Background(), pr) }()

	_, err := io.WriteString(pw, "gate\n")
	require.NoError(t, err)
	<-job.started
	interrupts <- os.Interrupt

	_, err = io.WriteString(pw, "quit\n")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
	assert.Contains(t, out.String(), "WARN: Aborted job gate.\n")
}

func TestShell_EOFWaitsForJob(t *testing.T) {
	job := newGateJob()
	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register(gateFactory{job: job}))

	var out bytes.Buffer
	sh := newTestShell(t, registry, &out)

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- sh.Run(context.Background(), pr) }()

	_, err := io.WriteString(pw, "gate\n")
	require.NoError(t, err)
	<-job.started
	require.NoError(t, pw.Close())

	select {
	case <-done:
		t.Fatal("shell exited while the job was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(job.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
	assert.Contains(t, out.String(), "OK: Job gate finished.\n")
}

func TestShell_InterruptBeforeJobDoesNotAbort(t *testing.T) {
	job := newGateJob()
	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register(gateFactory{job: job}))

	var out bytes.Buffer
	sh := newTestShell(t, registry, &out)
	interrupts := make(chan os.Signal, 1)
	interrupts <- os.Interrupt
	sh.Interrupts = interrupts

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- sh.Run(context.Background(), pr) }()

	_, err := io.WriteString(pw, "gate\n")
	require.NoError(t, err)
	<-job.started
	close(job.release)
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
	got := out.String()
	assert.Contains(t, got, "OK: Job gate finished.\n")
	assert.NotContains(t, got, "Aborting job gate")
}
