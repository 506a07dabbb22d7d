// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cancel runs statistics jobs on background workers and lets the
// foreground poll, abort and wait for them.
//
// # Overview
//
// A Supervisor owns a small worker pool. Start hands a Task to a worker
// and returns a Run handle immediately. The foreground then reads progress
// from the task itself (Job.Report) and uses the Run to abort or wait.
//
// # State Machine
//
//	Idle ──Start──▶ Running ──Process returns──▶ Completed
//	                   │
//	                   └──abort requested, worker exits──▶ Aborted
//
// Completed and Aborted are terminal, final and mutually exclusive. A run
// is Aborted iff an abort was requested (RequestAbort, Abort, cancelling
// the parent context, or Supervisor.Close) before its worker exited.
//
// # Abort
//
// Abort is cooperative. RequestAbort cancels the run's context and returns
// at once; Abort additionally blocks until the worker has exited, so the
// caller may read the task's final state without racing the worker.
//
// # Faults
//
// A panic inside Process is recovered on the worker, logged with its stack
// and recorded as ErrWorkerFault on a Completed run. It never reaches the
// caller's goroutine.
//
// # Thread Safety
//
// Supervisor and Run are safe for concurrent use.
package cancel
