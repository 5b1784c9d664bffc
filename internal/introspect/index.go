package introspect

import (
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
)

// Index is the immutable snapshot of the located elements of one pass.
type Index struct {
	elems   []*model.Element
	ordinal map[location.Location]int
	labels  map[string][]int
	kinds   map[string][]int
	pages   int

	mu    sync.RWMutex
	cache map[string][]int
}

// Empty returns an index without elements, the "previous" index of the
// first pass.
func Empty() *Index {
	return NewBuilder().Build()
}

// Len returns the number of elements.
func (ix *Index) Len() int {
	return len(ix.elems)
}

// Elements returns all elements in document order.
func (ix *Index) Elements() []*model.Element {
	return slices.Clone(ix.elems)
}

// Has reports whether an element with the location exists.
func (ix *Index) Has(loc location.Location) bool {
	_, ok := ix.ordinal[loc]
	return ok
}

// Ordinal returns the document-order position of a location.
func (ix *Index) Ordinal(loc location.Location) (int, bool) {
	i, ok := ix.ordinal[loc]
	return i, ok
}

// Element returns the element at a location.
func (ix *Index) Element(loc location.Location) (*model.Element, bool) {
	i, ok := ix.ordinal[loc]
	if !ok {
		return nil, false
	}
	return ix.elems[i], true
}

// Pages returns the number of pages of the pass.
func (ix *Index) Pages() int {
	return ix.pages
}

// PositionOf returns the first physical position of the element at loc.
func (ix *Index) PositionOf(loc location.Location) (model.Position, error) {
	e, ok := ix.Element(loc)
	if !ok || len(e.Positions) == 0 {
		return model.Position{}, fmt.Errorf("%w: %s", ErrUnresolvedLocation, loc)
	}
	return e.Positions[0], nil
}

// Page returns the page number of the element at loc.
func (ix *Index) Page(loc location.Location) (int, error) {
	pos, err := ix.PositionOf(loc)
	if err != nil {
		return 0, err
	}
	return pos.Page, nil
}

// Equal reports whether two indexes hold structurally equal elements in the
// same order.
func (ix *Index) Equal(other *Index) bool {
	return ix.Diff(other) == ""
}

// Diff describes the first difference between two indexes, or returns the
// empty string if they are equal.
func (ix *Index) Diff(other *Index) string {
	if len(ix.elems) != len(other.elems) {
		return fmt.Sprintf("element count changed from %d to %d", len(ix.elems), len(other.elems))
	}
	for i, e := range ix.elems {
		o := other.elems[i]
		if !e.Equal(o) {
			return fmt.Sprintf("element %d changed: %s %s", i, o.Kind, o.Location)
		}
	}
	return ""
}
