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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/AleutianAI/graphstats/pkg/histogram"
)

var (
	// ErrUnclassifiable is returned when a value's kind has no sizing rule.
	ErrUnclassifiable = errors.New("value cannot be classified for length measurement")

	// ErrNotLengthable is returned by Length for scalar kinds.
	ErrNotLengthable = errors.New("value kind has no length")
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindInvalid is the zero Kind. It has no sizing rule.
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindInt16s
	KindInt32s
	KindInt64s
	KindBytes
	KindFloat64s
	KindBools
	KindStrings
)

var kindNames = map[Kind]string{
	KindInvalid:  "invalid",
	KindString:   "string",
	KindInt:      "int64",
	KindFloat:    "float64",
	KindBool:     "bool",
	KindInt16s:   "[]int16",
	KindInt32s:   "[]int32",
	KindInt64s:   "[]int64",
	KindBytes:    "[]byte",
	KindFloat64s: "[]float64",
	KindBools:    "[]bool",
	KindStrings:  "[]string",
}

// String returns the Go-style type name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name && k != KindInvalid {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrUnclassifiable, name)
}

// Lengthable reports whether values of this kind have a length.
func (k Kind) Lengthable() bool {
	switch k {
	case KindString, KindInt16s, KindInt32s, KindInt64s, KindBytes, KindFloat64s, KindBools, KindStrings:
		return true
	}
	return false
}

// elementWidth is the byte width used to size arrays. Arrays of other
// element types are sized by element count.
func (k Kind) elementWidth() int64 {
	switch k {
	case KindInt16s:
		return 2
	case KindInt32s:
		return 4
	case KindInt64s:
		return 8
	}
	return 1
}

// Value is a property value. The zero Value has KindInvalid.
type Value struct {
	kind Kind
	v    any
}

func String(s string) Value      { return Value{kind: KindString, v: s} }
func Int(i int64) Value          { return Value{kind: KindInt, v: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, v: f} }
func Bool(b bool) Value          { return Value{kind: KindBool, v: b} }
func Int16s(a []int16) Value     { return Value{kind: KindInt16s, v: a} }
func Int32s(a []int32) Value     { return Value{kind: KindInt32s, v: a} }
func Int64s(a []int64) Value     { return Value{kind: KindInt64s, v: a} }
func Bytes(a []byte) Value       { return Value{kind: KindBytes, v: a} }
func Float64s(a []float64) Value { return Value{kind: KindFloat64s, v: a} }
func Bools(a []bool) Value       { return Value{kind: KindBools, v: a} }
func Strings(a []string) Value   { return Value{kind: KindStrings, v: a} }

// Of converts a Go value of a supported type into a Value.
func Of(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case int:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case bool:
		return Bool(v), nil
	case []int16:
		return Int16s(v), nil
	case []int32:
		return Int32s(v), nil
	case []int64:
		return Int64s(v), nil
	case []byte:
		return Bytes(v), nil
	case []float64:
		return Float64s(v), nil
	case []bool:
		return Bools(v), nil
	case []string:
		return Strings(v), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported type %T", ErrUnclassifiable, x)
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Interface returns the underlying Go value, nil for KindInvalid.
func (v Value) Interface() any { return v.v }

// Len returns the element count of an array value, or -1.
func (v Value) Len() int {
	switch a := v.v.(type) {
	case []int16:
		return len(a)
	case []int32:
		return len(a)
	case []int64:
		return len(a)
	case []byte:
		return len(a)
	case []float64:
		return len(a)
	case []bool:
		return len(a)
	case []string:
		return len(a)
	}
	return -1
}

// Length returns the size used by property statistics.
//
// Description:
//
//	Strings measure their UTF-8 byte length. []int16, []int32 and []int64
//	measure element count times 2, 4 and 8. Other arrays measure their
//	element count.
//
// Outputs:
//
//	int64 - The length.
//	error - ErrNotLengthable for scalars, ErrUnclassifiable for KindInvalid.
func (v Value) Length() (int64, error) {
	switch {
	case v.kind == KindString:
		return int64(len(v.v.(string))), nil
	case v.kind.Lengthable():
		return int64(v.Len()) * v.kind.elementWidth(), nil
	case v.kind == KindInvalid:
		return 0, ErrUnclassifiable
	}
	return 0, fmt.Errorf("%w: %s", ErrNotLengthable, v.kind)
}

// String renders the value. Arrays render element by element.
func (v Value) String() string {
	switch x := v.v.(type) {
	case nil:
		return "<invalid>"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return histogram.FormatSample(v.v)
}

type valueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, ErrUnclassifiable
	}
	raw, err := json.Marshal(v.v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s value: %w", v.kind, err)
	}
	return json.Marshal(valueJSON{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire valueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	kind, err := ParseKind(wire.Kind)
	if err != nil {
		return err
	}

	var decoded Value
	switch kind {
	case KindString:
		decoded, err = decodeAs(wire.Value, String)
	case KindInt:
		decoded, err = decodeAs(wire.Value, Int)
	case KindFloat:
		decoded, err = decodeAs(wire.Value, Float)
	case KindBool:
		decoded, err = decodeAs(wire.Value, Bool)
	case KindInt16s:
		decoded, err = decodeAs(wire.Value, Int16s)
	case KindInt32s:
		decoded, err = decodeAs(wire.Value, Int32s)
	case KindInt64s:
		decoded, err = decodeAs(wire.Value, Int64s)
	case KindBytes:
		decoded, err = decodeAs(wire.Value, Bytes)
	case KindFloat64s:
		decoded, err = decodeAs(wire.Value, Float64s)
	case KindBools:
		decoded, err = decodeAs(wire.Value, Bools)
	case KindStrings:
		decoded, err = decodeAs(wire.Value, Strings)
	}
	if err != nil {
		return fmt.Errorf("decode %s value: %w", kind, err)
	}
	*v = decoded
	return nil
}

func decodeAs[T any](raw json.RawMessage, wrap func(T) Value) (Value, error) {
	var x T
	if err := json.Unmarshal(raw, &x); err != nil {
		return Value{}, err
	}
	return wrap(x), nil
}
