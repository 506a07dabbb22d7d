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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
nodes:
  - id: 1
    properties:
      name: alice
      age: 31
      score: 4.5
      active: true
      tags: [a, b]
      counts: [1, 2, 3]
      ratios: [1, 2.5]
      ints: {int32: [1, 2, 3, 4, 5]}
      shorts: {int16: [7]}
      raw: {bytes: [0, 255]}
  - id: 2
relationships:
  - {id: 10, start: 1, end: 2, type: KNOWS, properties: {since: 2019}}
`

func TestLoadDocument(t *testing.T) {
	g, err := LoadDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.RelationshipCount())

	nodes := g.Nodes()
	props := nodes[0].Properties
	want := map[string]Kind{
		"name":   KindString,
		"age":    KindInt,
		"score":  KindFloat,
		"active": KindBool,
		"tags":   KindStrings,
		"counts": KindInt64s,
		"ratios": KindFloat64s,
		"ints":   KindInt32s,
		"shorts": KindInt16s,
		"raw":    KindBytes,
	}
	for key, kind := range want {
		assert.Equal(t, kind, props[key].Kind(), key)
	}

	n, err := props["ints"].Length()
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
	assert.Equal(t, []byte{0, 255}, props["raw"].Interface())
	assert.Empty(t, nodes[1].Properties)

	rels := g.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "KNOWS", rels[0].Type)
	assert.Equal(t, Int(2019), rels[0].Properties["since"])
}

func TestLoadDocument_Empty(t *testing.T) {
	g, err := LoadDocument(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, g.NodeCount())

	var count int
	for range g.Entities(context.Background()) {
		count++
	}
	assert.Zero(t, count)
}

func TestLoadDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"syntax", "nodes: [\n"},
		{"dangling", "nodes: [{id: 1}]\nrelationships: [{id: 1, start: 1, end: 2, type: X}]\n"},
		{"missing type", "nodes: [{id: 1}]\nrelationships: [{id: 1, start: 1, end: 1}]\n"},
		{"duplicate node", "nodes: [{id: 1}, {id: 1}]\n"},
		{"mixed list", "nodes: [{id: 1, properties: {x: [1, a]}}]\n"},
		{"unknown typed list", "nodes: [{id: 1, properties: {x: {uint8: [1]}}}]\n"},
		{"byte overflow", "nodes: [{id: 1, properties: {x: {bytes: [300]}}}]\n"},
		{"null", "nodes: [{id: 1, properties: {x: null}}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDocument(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}
