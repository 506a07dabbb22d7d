// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Memory is an in-memory graph. It may be mutated while a scan is running.
type Memory struct {
	mu    sync.RWMutex
	nodes map[ID]*memNode
	rels  map[ID]RelationshipRecord
}

type memNode struct {
	rec NodeRecord
	// out and in hold relationship IDs in insertion order
	out []ID
	in  []ID
}

// NewMemory returns an empty graph.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[ID]*memNode),
		rels:  make(map[ID]RelationshipRecord),
	}
}

// AddNode inserts a node. Properties are copied.
func (m *Memory) AddNode(id ID, props Properties) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; ok {
		return fmt.Errorf("node %d: %w", id, ErrDuplicateID)
	}
	m.nodes[id] = &memNode{rec: NodeRecord{ID: id, Properties: props.clone()}}
	return nil
}

// AddRelationship inserts a relationship between two existing nodes.
func (m *Memory) AddRelationship(id, start, end ID, relType string, props Properties) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rels[id]; ok {
		return fmt.Errorf("relationship %d: %w", id, ErrDuplicateID)
	}
	from, ok := m.nodes[start]
	if !ok {
		return fmt.Errorf("relationship %d start %d: %w", id, start, ErrDanglingRelationship)
	}
	to, ok := m.nodes[end]
	if !ok {
		return fmt.Errorf("relationship %d end %d: %w", id, end, ErrDanglingRelationship)
	}
	m.rels[id] = RelationshipRecord{ID: id, Start: start, End: end, Type: relType, Properties: props.clone()}
	from.out = append(from.out, id)
	to.in = append(to.in, id)
	return nil
}

// RemoveNode deletes a node and every relationship touching it.
func (m *Memory) RemoveNode(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	for _, relID := range slices.Concat(n.out, n.in) {
		rel, ok := m.rels[relID]
		if !ok {
			continue
		}
		delete(m.rels, relID)
		if other, ok := m.nodes[rel.Start]; ok && rel.Start != id {
			other.out = slices.DeleteFunc(other.out, func(r ID) bool { return r == relID })
		}
		if other, ok := m.nodes[rel.End]; ok && rel.End != id {
			other.in = slices.DeleteFunc(other.in, func(r ID) bool { return r == relID })
		}
	}
	delete(m.nodes, id)
	return nil
}

// NodeCount returns the number of nodes.
func (m *Memory) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// RelationshipCount returns the number of relationships.
func (m *Memory) RelationshipCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rels)
}

// Nodes returns copies of all node records in ascending ID order.
func (m *Memory) Nodes() []NodeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := lo.MapToSlice(m.nodes, func(_ ID, n *memNode) NodeRecord {
		return NodeRecord{ID: n.rec.ID, Properties: n.rec.Properties.clone()}
	})
	slices.SortFunc(recs, func(a, b NodeRecord) int { return compareID(a.ID, b.ID) })
	return recs
}

// Relationships returns copies of all relationship records in ascending ID order.
func (m *Memory) Relationships() []RelationshipRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := lo.MapToSlice(m.rels, func(_ ID, r RelationshipRecord) RelationshipRecord {
		r.Properties = r.Properties.clone()
		return r
	})
	slices.SortFunc(recs, func(a, b RelationshipRecord) int { return compareID(a.ID, b.ID) })
	return recs
}

// Entities yields nodes in ascending ID order. The ID list is taken when
// iteration starts; nodes removed afterwards yield ErrNotFound.
func (m *Memory) Entities(ctx context.Context) iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		m.mu.RLock()
		ids := lo.Keys(m.nodes)
		m.mu.RUnlock()
		slices.SortFunc(ids, compareID)

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			e, err := m.entity(id)
			if !yield(e, err) {
				return
			}
		}
	}
}

func (m *Memory) entity(id ID) (Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	rec := NodeRecord{ID: id, Properties: n.rec.Properties.clone()}
	return NewEntity(rec, func(ctx context.Context, dir Direction) iter.Seq2[Relationship, error] {
		return m.relationshipsOf(ctx, id, dir)
	}), nil
}

func (m *Memory) relationshipsOf(ctx context.Context, id ID, dir Direction) iter.Seq2[Relationship, error] {
	return func(yield func(Relationship, error) bool) {
		m.mu.RLock()
		n, ok := m.nodes[id]
		if !ok {
			m.mu.RUnlock()
			yield(nil, fmt.Errorf("node %d: %w", id, ErrEntityNotFound))
			return
		}
		var relIDs []ID
		if dir != Incoming {
			relIDs = append(relIDs, n.out...)
		}
		if dir != Outgoing {
			for _, relID := range n.in {
				// self loops were already listed as outgoing
				if dir == Both && m.rels[relID].Start == id {
					continue
				}
				relIDs = append(relIDs, relID)
			}
		}
		m.mu.RUnlock()

		for _, relID := range relIDs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			m.mu.RLock()
			rec, ok := m.rels[relID]
			m.mu.RUnlock()
			if !ok {
				if !yield(nil, fmt.Errorf("relationship %d: %w", relID, ErrNotFound)) {
					return
				}
				continue
			}
			rec.Properties = rec.Properties.clone()
			if !yield(NewRelationship(rec), nil) {
				return
			}
		}
	}
}

func compareID(a, b ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
