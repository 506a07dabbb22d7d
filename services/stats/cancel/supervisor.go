// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cancel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Supervisor runs tasks on a bounded pool of background workers.
//
// Thread Safety: Safe for concurrent use.
type Supervisor struct {
	config SupervisorConfig
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu     sync.Mutex
	runs   map[string]*Run
	closed bool

	wg sync.WaitGroup
}

// NewSupervisor creates a Supervisor.
//
// Inputs:
//
//	config - Pool configuration. Zero values take defaults.
//	logger - Logger for lifecycle events. Nil uses slog.Default().
//
// Outputs:
//
//	*Supervisor - Ready to start runs.
//	error - Non-nil if the configuration is invalid.
func NewSupervisor(config SupervisorConfig, logger *slog.Logger) (*Supervisor, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		config: config,
		logger: logger.With(slog.String("component", "supervisor")),
		sem:    semaphore.NewWeighted(int64(config.Workers)),
		runs:   make(map[string]*Run),
	}, nil
}

// Start hands task to a free worker and returns its Run without waiting.
//
// Description:
//
//	The run's context derives from parent; cancelling parent counts as an
//	abort request. Start never blocks on a busy pool.
//
// Outputs:
//
//	*Run - Handle in state Running.
//	error - ErrNilContext, ErrNilTask, ErrSupervisorClosed or
//	        ErrNoWorkerAvailable.
func (s *Supervisor) Start(parent context.Context, task Task) (*Run, error) {
	if parent == nil {
		return nil, ErrNilContext
	}
	if task == nil {
		return nil, ErrNilTask
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSupervisorClosed
	}
	if !s.sem.TryAcquire(1) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: all %d workers busy", ErrNoWorkerAvailable, s.config.Workers)
	}
	run := newRun(parent, task, s.logger)
	s.runs[run.id] = run
	s.wg.Add(1)
	s.mu.Unlock()

	run.state.Store(int32(StateRunning))
	recordStart()
	run.logger.Info("job started")

	go s.work(run)
	return run, nil
}

// Active returns the runs that have not finished, oldest first.
func (s *Supervisor) Active() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].started.Before(out[j].started)
	})
	return out
}

// Workers returns the pool size.
func (s *Supervisor) Workers() int {
	return s.config.Workers
}

// Close rejects new runs, aborts every live run and waits for all workers
// to exit. Safe to call more than once.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	live := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		live = append(live, r)
	}
	s.mu.Unlock()

	for _, r := range live {
		r.RequestAbort()
	}
	s.wg.Wait()
}

// work runs the task and frees its slot before Done is closed, so a
// caller returning from Wait can start another run immediately.
func (s *Supervisor) work(run *Run) {
	defer s.wg.Done()

	err := run.execute()
	run.finish(err)

	s.mu.Lock()
	delete(s.runs, run.id)
	s.mu.Unlock()
	s.sem.Release(1)

	close(run.done)
}

// Run is the handle for one task executing on a Supervisor worker.
//
// Thread Safety: Safe for concurrent use.
type Run struct {
	id     string
	task   Task
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state          atomic.Int32
	abortRequested atomic.Bool

	started time.Time

	// written by the worker before done is closed
	err      error
	finished time.Time
	done     chan struct{}
}

func newRun(parent context.Context, task Task, logger *slog.Logger) *Run {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	r := &Run{
		id:      id,
		task:    task,
		logger:  logger.With(slog.String("run_id", id), slog.String("job", task.Name())),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	r.state.Store(int32(StateIdle))
	return r
}

// ID returns the run's unique identifier.
func (r *Run) ID() string { return r.id }

// Name returns the task name.
func (r *Run) Name() string { return r.task.Name() }

// State returns the current state.
func (r *Run) State() State { return State(r.state.Load()) }

// Done is closed once the worker has exited and the state is terminal.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns the task's failure, or nil while running, on success, and
// on a clean abort.
func (r *Run) Err() error {
	// err and finished are written before the terminal state is stored
	if !r.State().IsTerminal() {
		return nil
	}
	return r.err
}

// AbortRequested reports whether an abort has been requested.
func (r *Run) AbortRequested() bool { return r.abortRequested.Load() }

// Duration returns the elapsed time, frozen once the run finishes.
func (r *Run) Duration() time.Duration {
	if !r.State().IsTerminal() {
		return time.Since(r.started)
	}
	return r.finished.Sub(r.started)
}

// RequestAbort asks the task to stop and returns immediately. It is a
// no-op once the run is terminal. Safe to call more than once.
func (r *Run) RequestAbort() {
	if r.State().IsTerminal() {
		return
	}
	if r.abortRequested.CompareAndSwap(false, true) {
		r.logger.Info("abort requested")
	}
	r.cancel()
}

// Abort requests an abort and blocks until the worker exits or ctx ends.
//
// Outputs:
//
//	State - StateAborted, or StateCompleted if the run had already
//	        finished. The current state if ctx ended first.
//	error - The task's failure, or ctx.Err() if the wait was cut short.
func (r *Run) Abort(ctx context.Context) (State, error) {
	r.RequestAbort()
	return r.Wait(ctx)
}

// Wait blocks until the worker exits or ctx ends.
func (r *Run) Wait(ctx context.Context) (State, error) {
	select {
	case <-r.done:
		return r.State(), r.err
	case <-ctx.Done():
		return r.State(), ctx.Err()
	}
}

// execute calls Process, converting a panic into ErrWorkerFault.
func (r *Run) execute() (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("job panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			recordFault(r.task.Name())
			err = fmt.Errorf("%w: %v", ErrWorkerFault, p)
		}
	}()
	return r.task.Process(r.ctx)
}

func (r *Run) finish(err error) {
	aborted := r.abortRequested.Load() || r.ctx.Err() != nil
	state := StateCompleted
	if aborted {
		state = StateAborted
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}

	r.err = err
	r.finished = time.Now()
	r.state.Store(int32(state))
	r.cancel()

	d := r.finished.Sub(r.started)
	recordFinish(r.task.Name(), state, err, d)
	if err != nil {
		r.logger.Error("job failed", slog.String("state", state.String()),
			slog.Duration("duration", d), slog.String("error", err.Error()))
	} else {
		r.logger.Info("job finished", slog.String("state", state.String()),
			slog.Duration("duration", d))
	}
}
