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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/graphstats/pkg/ux"
	"github.com/AleutianAI/graphstats/services/stats/cancel"
	"github.com/AleutianAI/graphstats/services/stats/graph"
	"github.com/AleutianAI/graphstats/services/stats/jobs"
)

const progressHint = `Hit ENTER for progress, or type "abort<ENTER>" to abort the command.`

// Shell is the interactive job prompt.
//
// Description:
//
//	Reads one command per line. A job name starts that job on the
//	supervisor and the shell then waits on it, printing the job report on
//	an empty line and aborting on "abort" or an interrupt. Input is read
//	on its own goroutine so that waiting on a job and reading the next
//	line can be selected together.
type Shell struct {
	Target     string
	Source     graph.Source
	Registry   *jobs.Registry
	Supervisor *cancel.Supervisor
	Printer    *ux.Printer
	Logger     *slog.Logger

	// Options returns job options for a job name.
	Options func(job string) jobs.Options

	// Interrupts aborts the running job. At the prompt an interrupt only
	// starts a fresh line. Nil disables it.
	Interrupts <-chan os.Signal

	last  jobs.Job
	lines <-chan string
}

// readLines feeds r line by line into a channel closed at EOF.
func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

// Run serves commands from in until exit, quit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	s.lines = readLines(in)
	s.welcome()
	s.help()

	for {
		s.prompt()
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Interrupts:
			// an interrupt at the prompt discards the line being typed
			s.Printer.Plain("\n")
			continue
		case line, ok = <-s.lines:
		}
		if !ok {
			return nil
		}
		if !s.handle(ctx, line) {
			return nil
		}
	}
}

// handle executes one command line and reports whether to continue.
func (s *Shell) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch strings.ToLower(fields[0]) {
	case "exit", "quit":
		return false
	case "help":
		s.help()
		return true
	case "last":
		if s.last == nil {
			s.Printer.Info("No job has run yet.")
			return true
		}
		s.report(s.last)
		return true
	}

	name := fields[0]
	job, err := s.Registry.New(name, s.Source, fields[1:], s.options(name))
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		s.Printer.Error(fmt.Sprintf("No such job or command: %s", name))
		return true
	case err != nil:
		s.Printer.Error(err.Error())
		return true
	}

	s.last = job
	s.runJob(ctx, job)
	return true
}

// runJob starts job and waits for it, serving progress and abort input.
func (s *Shell) runJob(ctx context.Context, job jobs.Job) {
	s.drainInterrupts()
	run, err := s.Supervisor.Start(ctx, job)
	if err != nil {
		s.Printer.Error(fmt.Sprintf("Job %s failed: %v", job.Name(), err))
		return
	}

	s.Printer.Plain("\n")
	s.Printer.Info(progressHint)

	lines := s.lines
	for waiting := true; waiting; {
		select {
		case <-run.Done():
			waiting = false
		case line, ok := <-lines:
			if !ok {
				// EOF: stop reading and let the job finish
				lines = nil
				continue
			}
			if strings.EqualFold(strings.TrimSpace(line), "abort") {
				s.abort(run)
				waiting = false
				continue
			}
			s.report(job)
		case <-s.Interrupts:
			s.abort(run)
			waiting = false
		}
	}

	state, err := run.Wait(context.Background())
	switch {
	case err != nil:
		s.Printer.Error(fmt.Sprintf("Job %s failed: %v", job.Name(), err))
	case state == cancel.StateCompleted:
		s.Printer.Success(fmt.Sprintf("Job %s finished.", job.Name()))
		s.Printer.Plain("\n")
	}
	s.report(job)
	s.Printer.Plain("\n")
}

// drainInterrupts drops interrupts received before a job started so that
// only an interrupt during the run aborts it.
func (s *Shell) drainInterrupts() {
	for {
		select {
		case <-s.Interrupts:
		default:
			return
		}
	}
}

func (s *Shell) abort(run *cancel.Run) {
	s.Printer.Warning(fmt.Sprintf("Aborting job %s...", run.Name()))
	state, err := run.Abort(context.Background())
	if err != nil {
		s.Logger.Warn("job ended with error after abort",
			slog.String("job", run.Name()), slog.String("error", err.Error()))
	}
	if state == cancel.StateAborted {
		s.Printer.Warning(fmt.Sprintf("Aborted job %s.", run.Name()))
	}
}

func (s *Shell) report(job jobs.Job) {
	var b strings.Builder
	if err := job.Report(&b); err != nil {
		s.Printer.Error(fmt.Sprintf("report %s: %v", job.Name(), err))
		return
	}
	s.Printer.Plain(b.String())
}

func (s *Shell) options(job string) jobs.Options {
	if s.Options == nil {
		return jobs.Options{Logger: s.Logger}
	}
	return s.Options(job)
}

func (s *Shell) prompt() {
	if s.Printer.Level() == ux.PersonalityMachine {
		return
	}
	s.Printer.Plain(ux.Styles.Subtitle.Render("graphstats") + "> ")
}

func (s *Shell) welcome() {
	s.Printer.Title("Welcome to the graphstats statistics tool.")
	s.Printer.Info(fmt.Sprintf("Target store: %s", s.Target))
	s.Printer.Info("---")
}

func (s *Shell) help() {
	var b strings.Builder
	b.WriteString("Available jobs:\n")
	for _, f := range s.Registry.Factories() {
		fmt.Fprintf(&b, "  %s %s\n", f.Name(), f.ArgsHelp())
	}
	b.WriteString("\nAvailable builtins:\n")
	b.WriteString("  help           Show this\n")
	b.WriteString("  exit or quit   Exit\n")
	b.WriteString("  last           Show results of last run\n\n")
	s.Printer.Plain(b.String())
}
