// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/graphstats/services/stats/graph"
)

// Key layout. IDs are big-endian with the sign bit flipped so that key
// order matches numeric order.
//
//	n/<node>                 -> JSON graph.NodeRecord
//	r/<rel>                  -> JSON graph.RelationshipRecord
//	a/<node><o|i><rel>       -> empty (adjacency)
const (
	prefixNode      = 'n'
	prefixRel       = 'r'
	prefixAdjacency = 'a'

	dirOut byte = 'o'
	dirIn  byte = 'i'

	// scanPageSize bounds how many node keys one read transaction lists.
	scanPageSize = 512
)

// GraphStore persists a graph in BadgerDB and implements graph.Source.
//
// Thread Safety: safe for concurrent use. A scan sees writes made while
// it runs; nodes deleted after they were listed yield graph.ErrNotFound.
type GraphStore struct {
	db     *DB
	logger *slog.Logger
}

var _ graph.Source = (*GraphStore)(nil)

// NewGraphStore wraps an open database.
func NewGraphStore(db *DB, logger *slog.Logger) *GraphStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GraphStore{
		db:     db,
		logger: logger.With(slog.String("component", "graphstore")),
	}
}

func encodeID(id graph.ID) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id)^(1<<63))
	return b[:]
}

func decodeID(b []byte) graph.ID {
	return graph.ID(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func nodeKey(id graph.ID) []byte {
	return append([]byte{prefixNode, '/'}, encodeID(id)...)
}

func relKey(id graph.ID) []byte {
	return append([]byte{prefixRel, '/'}, encodeID(id)...)
}

func adjacencyPrefix(node graph.ID, dir byte) []byte {
	key := append([]byte{prefixAdjacency, '/'}, encodeID(node)...)
	return append(key, dir)
}

func adjacencyKey(node graph.ID, dir byte, rel graph.ID) []byte {
	return append(adjacencyPrefix(node, dir), encodeID(rel)...)
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return graph.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return txn.Set(key, data)
}

// PutNode inserts or replaces a node. Existing relationships are kept.
func (s *GraphStore) PutNode(ctx context.Context, rec graph.NodeRecord) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, nodeKey(rec.ID), rec)
	})
}

// PutRelationship inserts a relationship between two stored nodes.
func (s *GraphStore) PutRelationship(ctx context.Context, rec graph.RelationshipRecord) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, end := range []graph.ID{rec.Start, rec.End} {
			if _, err := txn.Get(nodeKey(end)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("relationship %d endpoint %d: %w", rec.ID, end, graph.ErrDanglingRelationship)
				}
				return err
			}
		}
		return putRelationship(txn, rec)
	})
}

func putRelationship(txn *badger.Txn, rec graph.RelationshipRecord) error {
	if err := setJSON(txn, relKey(rec.ID), rec); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(rec.Start, dirOut, rec.ID), nil); err != nil {
		return err
	}
	return txn.Set(adjacencyKey(rec.End, dirIn, rec.ID), nil)
}

// DeleteNode removes a node, its relationships and their adjacency entries.
func (s *GraphStore) DeleteNode(ctx context.Context, id graph.ID) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("node %d: %w", id, graph.ErrNotFound)
			}
			return err
		}

		var rels []graph.ID
		for _, dir := range []byte{dirOut, dirIn} {
			ids, err := listAdjacency(txn, id, dir)
			if err != nil {
				return err
			}
			rels = append(rels, ids...)
		}

		for _, relID := range rels {
			var rec graph.RelationshipRecord
			if err := getJSON(txn, relKey(relID), &rec); err != nil {
				if errors.Is(err, graph.ErrNotFound) {
					continue
				}
				return err
			}
			for _, key := range [][]byte{
				relKey(relID),
				adjacencyKey(rec.Start, dirOut, relID),
				adjacencyKey(rec.End, dirIn, relID),
			} {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
		}
		return txn.Delete(nodeKey(id))
	})
}

func listAdjacency(txn *badger.Txn, node graph.ID, dir byte) ([]graph.ID, error) {
	prefix := adjacencyPrefix(node, dir)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []graph.ID
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		ids = append(ids, decodeID(key[len(prefix):]))
	}
	return ids, nil
}

// Import copies a Memory graph into the store using write batches.
//
// Outputs:
//
//	int - Nodes written.
//	int - Relationships written.
//	error - Non-nil if a write fails or ctx ends.
func (s *GraphStore) Import(ctx context.Context, g *graph.Memory) (int, int, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	nodes := g.Nodes()
	for _, rec := range nodes {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, 0, fmt.Errorf("encode node %d: %w", rec.ID, err)
		}
		if err := wb.Set(nodeKey(rec.ID), data); err != nil {
			return 0, 0, fmt.Errorf("write node %d: %w", rec.ID, err)
		}
	}

	rels := g.Relationships()
	for _, rec := range rels {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, 0, fmt.Errorf("encode relationship %d: %w", rec.ID, err)
		}
		for _, kv := range []struct{ k, v []byte }{
			{relKey(rec.ID), data},
			{adjacencyKey(rec.Start, dirOut, rec.ID), nil},
			{adjacencyKey(rec.End, dirIn, rec.ID), nil},
		} {
			if err := wb.Set(kv.k, kv.v); err != nil {
				return 0, 0, fmt.Errorf("write relationship %d: %w", rec.ID, err)
			}
		}
	}

	if err := wb.Flush(); err != nil {
		return 0, 0, fmt.Errorf("flush import: %w", err)
	}
	s.logger.Info("graph imported", slog.Int("nodes", len(nodes)), slog.Int("relationships", len(rels)))
	return len(nodes), len(rels), nil
}

// Counts returns the number of stored nodes and relationships.
func (s *GraphStore) Counts(ctx context.Context) (nodes, rels int64, err error) {
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		nodes = countPrefix(txn, []byte{prefixNode, '/'})
		rels = countPrefix(txn, []byte{prefixRel, '/'})
		return nil
	})
	return nodes, rels, err
}

func countPrefix(txn *badger.Txn, prefix []byte) int64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// Entities yields nodes in ascending ID order.
//
// Description:
//
//	Node keys are listed a page at a time with key-only iteration, then
//	each node is fetched in its own read transaction. A node deleted
//	between listing and fetch yields graph.ErrNotFound.
func (s *GraphStore) Entities(ctx context.Context) iter.Seq2[graph.Entity, error] {
	return func(yield func(graph.Entity, error) bool) {
		var after []byte
		for {
			ids, err := s.listNodes(ctx, after)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(ids) == 0 {
				return
			}
			for _, id := range ids {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(s.fetchEntity(ctx, id)) {
					return
				}
			}
			after = nodeKey(ids[len(ids)-1])
		}
	}
}

func (s *GraphStore) listNodes(ctx context.Context, after []byte) ([]graph.ID, error) {
	prefix := []byte{prefixNode, '/'}
	ids := make([]graph.ID, 0, scanPageSize)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if after != nil {
			start = after
		}
		for it.Seek(start); it.ValidForPrefix(prefix) && len(ids) < scanPageSize; it.Next() {
			key := it.Item().Key()
			if after != nil && string(key) == string(after) {
				continue
			}
			ids = append(ids, decodeID(key[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func (s *GraphStore) fetchEntity(ctx context.Context, id graph.ID) (graph.Entity, error) {
	var rec graph.NodeRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, nodeKey(id), &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	return graph.NewEntity(rec, func(ctx context.Context, dir graph.Direction) iter.Seq2[graph.Relationship, error] {
		return s.relationshipsOf(ctx, id, dir)
	}), nil
}

func (s *GraphStore) relationshipsOf(ctx context.Context, node graph.ID, dir graph.Direction) iter.Seq2[graph.Relationship, error] {
	return func(yield func(graph.Relationship, error) bool) {
		var out, in []graph.ID
		err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			if _, err := txn.Get(nodeKey(node)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("node %d: %w", node, graph.ErrEntityNotFound)
				}
				return err
			}
			var err error
			if dir != graph.Incoming {
				if out, err = listAdjacency(txn, node, dirOut); err != nil {
					return err
				}
			}
			if dir != graph.Outgoing {
				in, err = listAdjacency(txn, node, dirIn)
			}
			return err
		})
		if err != nil {
			yield(nil, err)
			return
		}

		emit := func(relID graph.ID, skipSelfLoop bool) bool {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return false
			}
			var rec graph.RelationshipRecord
			err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
				return getJSON(txn, relKey(relID), &rec)
			})
			if err != nil {
				return yield(nil, fmt.Errorf("relationship %d: %w", relID, err))
			}
			// self loops were already listed as outgoing
			if skipSelfLoop && rec.Start == node {
				return true
			}
			return yield(graph.NewRelationship(rec), nil)
		}

		for _, relID := range out {
			if !emit(relID, false) {
				return
			}
		}
		for _, relID := range in {
			if !emit(relID, dir == graph.Both) {
				return
			}
		}
	}
}
