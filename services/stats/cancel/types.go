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
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrSupervisorClosed is returned by Start after Close.
	ErrSupervisorClosed = errors.New("supervisor is closed")

	// ErrNoWorkerAvailable is returned by Start when every worker is busy.
	ErrNoWorkerAvailable = errors.New("no worker available")

	// ErrWorkerFault marks a run whose task panicked.
	ErrWorkerFault = errors.New("worker fault")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilTask is returned when a nil task is provided.
	ErrNilTask = errors.New("task must not be nil")
)

// -----------------------------------------------------------------------------
// Task
// -----------------------------------------------------------------------------

// Task is the unit of work run by a Supervisor. jobs.Job satisfies it.
type Task interface {
	Name() string

	// Process blocks until the work is done or ctx ends. Returning
	// ctx.Err() after an abort is not treated as a failure.
	Process(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

// State is the lifecycle state of a Run.
type State int32

const (
	// StateIdle is the state before the worker starts.
	StateIdle State = iota

	// StateRunning means the worker is executing the task.
	StateRunning

	// StateCompleted means the task returned without an abort request.
	StateCompleted

	// StateAborted means an abort was requested before the worker exited.
	StateAborted
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// IsTerminal reports whether s is Completed or Aborted.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

// DefaultWorkers is the pool size used when SupervisorConfig.Workers is 0.
const DefaultWorkers = 3

// MaxWorkers bounds SupervisorConfig.Workers.
const MaxWorkers = 64

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Workers is the number of runs that may execute at once.
	// Default: DefaultWorkers.
	Workers int
}

// ApplyDefaults fills in zero values.
func (c *SupervisorConfig) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

// Validate checks the configuration.
func (c *SupervisorConfig) Validate() error {
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: Workers must be between 1 and %d, got %d", ErrInvalidConfig, MaxWorkers, c.Workers)
	}
	return nil
}
