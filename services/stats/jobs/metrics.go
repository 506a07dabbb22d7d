// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// entitiesScanned counts entities fully processed.
	// Labels: job
	entitiesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphstats",
		Subsystem: "jobs",
		Name:      "entities_scanned_total",
		Help:      "Total entities processed by statistics jobs",
	}, []string{"job"})

	// entitiesSkipped counts entities or relationships that vanished mid-scan.
	// Labels: job
	entitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphstats",
		Subsystem: "jobs",
		Name:      "entities_skipped_total",
		Help:      "Total entities or relationships skipped because they no longer exist",
	}, []string{"job"})
)
