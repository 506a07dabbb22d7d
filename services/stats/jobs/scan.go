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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/graphstats/services/stats/graph"
)

// scanner drives one pass over a source on behalf of a job.
type scanner struct {
	job    string
	src    graph.Source
	logger *slog.Logger
}

// each calls visit for every entity that still exists.
//
// Entities that vanished are skipped. visit receives a context that is not
// cancelled by an abort, so the entity in progress is finished before each
// returns ctx.Err().
func (s scanner) each(ctx context.Context, visit func(ctx context.Context, e graph.Entity) error) error {
	scanned := entitiesScanned.WithLabelValues(s.job)
	entityCtx := context.WithoutCancel(ctx)

	for e, err := range s.src.Entities(ctx) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				s.skip("entity vanished during scan", err)
				continue
			}
			return fmt.Errorf("scan entities: %w", err)
		}
		if err := visit(entityCtx, e); err != nil {
			if errors.Is(err, graph.ErrEntityNotFound) {
				s.skip("entity vanished during scan", err)
				continue
			}
			return err
		}
		scanned.Inc()
	}
	return ctx.Err()
}

// relationships calls fn for each relationship of e in dir that still exists.
// If e itself has vanished it returns an error wrapping ErrEntityNotFound,
// which each turns into a skip of the whole entity.
func (s scanner) relationships(ctx context.Context, e graph.Entity, dir graph.Direction, fn func(graph.Relationship) error) error {
	for rel, err := range e.Relationships(ctx, dir) {
		if err != nil {
			if errors.Is(err, graph.ErrEntityNotFound) {
				return err
			}
			if errors.Is(err, graph.ErrNotFound) {
				s.skip("relationship vanished during scan", err)
				continue
			}
			return fmt.Errorf("relationships of node %d: %w", e.ID(), err)
		}
		if err := fn(rel); err != nil {
			return err
		}
	}
	return nil
}

func (s scanner) skip(msg string, err error) {
	entitiesSkipped.WithLabelValues(s.job).Inc()
	s.logger.Debug(msg, slog.String("error", err.Error()))
}
