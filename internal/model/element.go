// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Element, the unit the introspection index is built from.
//
// Why are elements immutable?
//
// Every pass rebuilds all elements from scratch, and the index of a finished
// pass is read concurrently by the next one. Attaching positions therefore
// returns a copy instead of mutating the element in place.
package model

import (
	"maps"
	"slices"
	"sort"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/zclconf/go-cty/cty"
)

// Element kinds produced by the evaluator and the layout engine.
const (
	KindHeading       = "heading"
	KindFigure        = "figure"
	KindMetadata      = "metadata"
	KindContext       = "context"
	KindCounterUpdate = "counter_update"
	KindStateUpdate   = "state_update"
	KindRef           = "ref"
	KindOutline       = "outline"
	KindPage          = "page"
)

// Position is a physical position: a 1-based page number and the zero-based
// character cell of the element's first line on that page.
type Position struct {
	Page int `json:"page" yaml:"page"`
	X    int `json:"x" yaml:"x"`
	Y    int `json:"y" yaml:"y"`
}

// Element is an immutable record of one located construct.
type Element struct {
	Kind      string
	Label     string
	Location  location.Location
	Fields    map[string]cty.Value
	Positions []Position
}

// NewElement creates an element without physical positions.
func NewElement(kind string, loc location.Location, label string, fields map[string]cty.Value) *Element {
	if fields == nil {
		fields = map[string]cty.Value{}
	}
	return &Element{
		Kind:     kind,
		Label:    label,
		Location: loc,
		Fields:   fields,
	}
}

// Field returns the value of a named field.
func (e *Element) Field(name string) (cty.Value, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// WithPositions returns a copy of e carrying the given positions.
func (e *Element) WithPositions(positions ...Position) *Element {
	out := *e
	out.Positions = slices.Clone(positions)
	return &out
}

// FieldNames returns the field names in sorted order.
func (e *Element) FieldNames() []string {
	names := slices.Collect(maps.Keys(e.Fields))
	sort.Strings(names)
	return names
}

// Equal reports structural equality, including unknown field values.
func (e *Element) Equal(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Kind != other.Kind || e.Label != other.Label || e.Location != other.Location {
		return false
	}
	if !slices.Equal(e.Positions, other.Positions) || len(e.Fields) != len(other.Fields) {
		return false
	}
	for name, v := range e.Fields {
		w, ok := other.Fields[name]
		if !ok || !v.RawEquals(w) {
			return false
		}
	}
	return true
}

// Value converts the element into the object shape seen by document
// expressions: kind, label, location, page and fields.
func (e *Element) Value() cty.Value {
	label := cty.NullVal(cty.String)
	if e.Label != "" {
		label = cty.StringVal(e.Label)
	}
	page := cty.NullVal(cty.Number)
	if len(e.Positions) > 0 {
		page = cty.NumberIntVal(int64(e.Positions[0].Page))
	}
	fields := cty.EmptyObjectVal
	if len(e.Fields) > 0 {
		fields = cty.ObjectVal(e.Fields)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"kind":     cty.StringVal(e.Kind),
		"label":    label,
		"location": cty.StringVal(e.Location.String()),
		"page":     page,
		"fields":   fields,
	})
}
