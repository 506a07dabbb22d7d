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
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned for graph documents that cannot be loaded.
var ErrInvalidDocument = errors.New("invalid graph document")

// Document is the YAML form of a graph:
//
//	nodes:
//	  - id: 1
//	    properties: {name: alice, scores: {int32: [1, 2, 3]}}
//	relationships:
//	  - {id: 10, start: 1, end: 2, type: KNOWS, properties: {since: 2019}}
//
// Untyped lists infer []int64, []float64, []string or []bool. A single-key
// map whose key is int16, int32, int64, bytes, float64, bool or string
// selects the array kind explicitly.
type Document struct {
	Nodes         []NodeDocument         `yaml:"nodes"`
	Relationships []RelationshipDocument `yaml:"relationships"`
}

// NodeDocument is one node entry.
type NodeDocument struct {
	ID         ID                   `yaml:"id"`
	Properties map[string]yaml.Node `yaml:"properties"`
}

// RelationshipDocument is one relationship entry.
type RelationshipDocument struct {
	ID         ID                   `yaml:"id"`
	Start      ID                   `yaml:"start"`
	End        ID                   `yaml:"end"`
	Type       string               `yaml:"type"`
	Properties map[string]yaml.Node `yaml:"properties"`
}

// LoadDocument parses a YAML graph document into a Memory graph.
func LoadDocument(r io.Reader) (*Memory, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewMemory(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	g := NewMemory()
	for i, n := range doc.Nodes {
		props, err := decodeProperties(n.Properties)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d]: %v", ErrInvalidDocument, i, err)
		}
		if err := g.AddNode(n.ID, props); err != nil {
			return nil, fmt.Errorf("%w: nodes[%d]: %v", ErrInvalidDocument, i, err)
		}
	}
	for i, rel := range doc.Relationships {
		if rel.Type == "" {
			return nil, fmt.Errorf("%w: relationships[%d]: missing type", ErrInvalidDocument, i)
		}
		props, err := decodeProperties(rel.Properties)
		if err != nil {
			return nil, fmt.Errorf("%w: relationships[%d]: %v", ErrInvalidDocument, i, err)
		}
		if err := g.AddRelationship(rel.ID, rel.Start, rel.End, rel.Type, props); err != nil {
			return nil, fmt.Errorf("%w: relationships[%d]: %v", ErrInvalidDocument, i, err)
		}
	}
	return g, nil
}

func decodeProperties(nodes map[string]yaml.Node) (Properties, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	props := make(Properties, len(nodes))
	for key, node := range nodes {
		v, err := decodeValue(&node)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		props[key] = v
	}
	return props, nil
}

func decodeValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.SequenceNode:
		return decodeList(node)
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return Value{}, fmt.Errorf("typed list must have exactly one key")
		}
		return decodeTypedList(node.Content[0].Value, node.Content[1])
	}
	return Value{}, fmt.Errorf("unsupported yaml node at line %d", node.Line)
}

func decodeScalar(node *yaml.Node) (Value, error) {
	switch node.ShortTag() {
	case "!!str":
		return String(node.Value), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	}
	return Value{}, fmt.Errorf("unsupported scalar %s at line %d", node.ShortTag(), node.Line)
}

func decodeList(node *yaml.Node) (Value, error) {
	tag := ""
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return Value{}, fmt.Errorf("nested lists are not supported (line %d)", item.Line)
		}
		t := item.ShortTag()
		switch {
		case tag == "":
			tag = t
		case tag == t:
		case (tag == "!!int" && t == "!!float") || (tag == "!!float" && t == "!!int"):
			tag = "!!float"
		default:
			return Value{}, fmt.Errorf("mixed list element types %s and %s (line %d)", tag, t, item.Line)
		}
	}

	switch tag {
	case "", "!!str":
		return decodeTypedList("string", node)
	case "!!int":
		return decodeTypedList("int64", node)
	case "!!float":
		return decodeTypedList("float64", node)
	case "!!bool":
		return decodeTypedList("bool", node)
	}
	return Value{}, fmt.Errorf("unsupported list element %s (line %d)", tag, node.Line)
}

func decodeTypedList(elem string, node *yaml.Node) (Value, error) {
	if node.Kind != yaml.SequenceNode {
		return Value{}, fmt.Errorf("typed list %q must hold a sequence (line %d)", elem, node.Line)
	}
	switch elem {
	case "int16":
		return decodeInto(node, Int16s)
	case "int32":
		return decodeInto(node, Int32s)
	case "int64":
		return decodeInto(node, Int64s)
	case "bytes":
		return decodeInto(node, Bytes)
	case "float64":
		return decodeInto(node, Float64s)
	case "bool":
		return decodeInto(node, Bools)
	case "string":
		return decodeInto(node, Strings)
	}
	return Value{}, fmt.Errorf("unknown list type %q (line %d)", elem, node.Line)
}

func decodeInto[T any](node *yaml.Node, wrap func([]T) Value) (Value, error) {
	out := []T{}
	if err := node.Decode(&out); err != nil {
		return Value{}, err
	}
	return wrap(out), nil
}
