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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts finished runs.
	// Labels: job, outcome (completed, aborted, failed)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphstats",
		Name:      "job_runs_total",
		Help:      "Total job runs by terminal outcome",
	}, []string{"job", "outcome"})

	// runDuration measures wall time from start to worker exit.
	// Labels: job, outcome
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "graphstats",
		Name:      "job_run_duration_seconds",
		Help:      "Job run duration in seconds",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"job", "outcome"})

	// runsActive tracks runs currently holding a worker.
	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "graphstats",
		Name:      "job_runs_active",
		Help:      "Job runs currently executing",
	})

	// faultsTotal counts recovered panics.
	// Labels: job
	faultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphstats",
		Name:      "job_faults_total",
		Help:      "Total job runs that panicked",
	}, []string{"job"})
)

// outcome labels a finished run.
func outcome(state State, err error) string {
	switch {
	case state == StateAborted:
		return "aborted"
	case err != nil:
		return "failed"
	default:
		return "completed"
	}
}

func recordStart() {
	runsActive.Inc()
}

func recordFinish(job string, state State, err error, d time.Duration) {
	runsActive.Dec()
	o := outcome(state, err)
	runsTotal.WithLabelValues(job, o).Inc()
	runDuration.WithLabelValues(job, o).Observe(d.Seconds())
}

func recordFault(job string) {
	faultsTotal.WithLabelValues(job).Inc()
}
