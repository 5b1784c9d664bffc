package introspect

import (
	"fmt"
	"sync"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
)

// Builder accumulates the elements of one pass in document order.
type Builder struct {
	mu    sync.Mutex
	elems []*model.Element
	seen  map[location.Location]int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[location.Location]int)}
}

// Add appends an element and returns its ordinal. Adding two elements with
// the same location is an error.
func (b *Builder) Add(e *model.Element) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, exists := b.seen[e.Location]; exists {
		return 0, fmt.Errorf("location %s already taken by element %d (%s)", e.Location, prev, b.elems[prev].Kind)
	}
	ordinal := len(b.elems)
	b.elems = append(b.elems, e)
	b.seen[e.Location] = ordinal
	return ordinal, nil
}

// Len returns the number of elements added so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.elems)
}

// Build publishes the index. The builder must not be used afterwards.
func (b *Builder) Build() *Index {
	b.mu.Lock()
	defer b.mu.Unlock()

	ix := &Index{
		elems:   b.elems,
		ordinal: b.seen,
		labels:  make(map[string][]int),
		kinds:   make(map[string][]int),
		cache:   make(map[string][]int),
	}
	for i, e := range ix.elems {
		ix.kinds[e.Kind] = append(ix.kinds[e.Kind], i)
		if e.Label != "" {
			ix.labels[e.Label] = append(ix.labels[e.Label], i)
		}
		if e.Kind == model.KindPage {
			ix.pages++
		}
	}
	b.elems = nil
	b.seen = nil
	return ix
}

// FromElements builds an index from elements already in document order.
func FromElements(elems []*model.Element) (*Index, error) {
	b := NewBuilder()
	for _, e := range elems {
		if _, err := b.Add(e); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
