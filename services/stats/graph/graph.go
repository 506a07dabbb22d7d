// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph defines the data source scanned by statistics jobs.
//
// # Overview
//
// A Source enumerates entities (nodes). Each entity exposes its properties
// and its relationships, filtered by direction. Sequences are lazy and
// finite, and may be requested again.
//
// Two sources exist: Memory (in this package) and the BadgerDB-backed
// store in services/stats/storage/badger.
//
// # Consistency
//
// Sources do not offer snapshot isolation. An entity removed after it was
// enumerated is yielded as an ErrNotFound error; scans skip it. An entity
// removed after it was fetched makes Relationships yield ErrEntityNotFound,
// which scans treat the same way.
package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/samber/lo"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when an entity or relationship vanished between
	// enumeration and fetch.
	ErrNotFound = errors.New("not found")

	// ErrEntityNotFound is yielded by Entity.Relationships when the entity
	// itself has vanished. It wraps ErrNotFound.
	ErrEntityNotFound = fmt.Errorf("entity %w", ErrNotFound)

	// ErrPropertyNotFound is returned by Property for an unknown key.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrDanglingRelationship is returned when a relationship endpoint does not exist.
	ErrDanglingRelationship = errors.New("relationship endpoint does not exist")

	// ErrDuplicateID is returned when an ID is already in use.
	ErrDuplicateID = errors.New("duplicate id")
)

// -----------------------------------------------------------------------------
// Contract
// -----------------------------------------------------------------------------

// ID identifies a node or a relationship. Node and relationship IDs are
// separate namespaces.
type ID int64

// Direction filters relationships relative to an entity.
type Direction int

const (
	// Both yields every relationship touching the entity once.
	Both Direction = iota

	// Outgoing yields relationships starting at the entity.
	Outgoing

	// Incoming yields relationships ending at the entity.
	Incoming
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Both:
		return "both"
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// PropertyContainer exposes key/value properties.
type PropertyContainer interface {
	// PropertyKeys returns the keys in ascending order.
	PropertyKeys() []string

	// Property returns the value for key, or ErrPropertyNotFound.
	Property(key string) (Value, error)
}

// Entity is a node as seen by a scan.
type Entity interface {
	PropertyContainer
	ID() ID
	Relationships(ctx context.Context, dir Direction) iter.Seq2[Relationship, error]
}

// Relationship is a typed, directed edge between two entities.
type Relationship interface {
	PropertyContainer
	ID() ID
	Type() string
	Start() ID
	End() ID
}

// Source enumerates every entity.
type Source interface {
	// Entities yields each entity once. A non-nil error with a nil entity
	// reports a per-entity failure (ErrNotFound) or a terminal failure
	// such as context cancellation; consumers decide whether to continue.
	Entities(ctx context.Context) iter.Seq2[Entity, error]
}

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// Properties is a PropertyContainer backed by a map.
type Properties map[string]Value

// PropertyKeys returns the keys in ascending order.
func (p Properties) PropertyKeys() []string {
	keys := lo.Keys(p)
	slices.Sort(keys)
	return keys
}

// Property returns the value for key.
func (p Properties) Property(key string) (Value, error) {
	v, ok := p[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrPropertyNotFound, key)
	}
	return v, nil
}

func (p Properties) clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// NodeRecord is the stored form of a node.
type NodeRecord struct {
	ID         ID         `json:"id"`
	Properties Properties `json:"properties,omitempty"`
}

// RelationshipRecord is the stored form of a relationship.
type RelationshipRecord struct {
	ID         ID         `json:"id"`
	Start      ID         `json:"start"`
	End        ID         `json:"end"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties,omitempty"`
}

// Touches reports whether the relationship has node as an endpoint in dir.
func (r RelationshipRecord) Touches(node ID, dir Direction) bool {
	switch dir {
	case Outgoing:
		return r.Start == node
	case Incoming:
		return r.End == node
	default:
		return r.Start == node || r.End == node
	}
}

// RelationshipFunc lists an entity's relationships in a direction.
type RelationshipFunc func(ctx context.Context, dir Direction) iter.Seq2[Relationship, error]

// NewEntity wraps a record as an Entity whose relationships come from rels.
func NewEntity(rec NodeRecord, rels RelationshipFunc) Entity {
	return &entity{rec: rec, rels: rels}
}

// NewRelationship wraps a record as a Relationship.
func NewRelationship(rec RelationshipRecord) Relationship {
	return relationship{rec: rec}
}

type entity struct {
	rec  NodeRecord
	rels RelationshipFunc
}

func (e *entity) ID() ID                             { return e.rec.ID }
func (e *entity) PropertyKeys() []string             { return e.rec.Properties.PropertyKeys() }
func (e *entity) Property(key string) (Value, error) { return e.rec.Properties.Property(key) }

func (e *entity) Relationships(ctx context.Context, dir Direction) iter.Seq2[Relationship, error] {
	if e.rels == nil {
		return func(func(Relationship, error) bool) {}
	}
	return e.rels(ctx, dir)
}

type relationship struct {
	rec RelationshipRecord
}

func (r relationship) ID() ID                             { return r.rec.ID }
func (r relationship) Type() string                       { return r.rec.Type }
func (r relationship) Start() ID                          { return r.rec.Start }
func (r relationship) End() ID                            { return r.rec.End }
func (r relationship) PropertyKeys() []string             { return r.rec.Properties.PropertyKeys() }
func (r relationship) Property(key string) (Value, error) { return r.rec.Properties.Property(key) }
