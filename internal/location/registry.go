package location

import (
	"sync"
)

// Registry records the locations assigned during one compilation pass. It
// is safe for concurrent use by the workers of a pass.
type Registry struct {
	mu    sync.Mutex
	uses  map[string]int
	owner map[Location]string
}

// NewRegistry creates an empty registry for a new pass.
func NewRegistry() *Registry {
	return &Registry{
		uses:  make(map[string]int),
		owner: make(map[Location]string),
	}
}

// Assign returns the location for p. The first construction of a path gets
// Assign(p); constructing the same path again within the pass yields
// successive variants so that locations are never reused.
func (r *Registry) Assign(p Path) Location {
	key := p.String()
	base := Assign(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.uses[key]
	loc := base
	if n > 0 {
		loc = base.Variant(n)
	}
	for {
		if _, taken := r.owner[loc]; !taken {
			break
		}
		n++
		loc = base.Variant(n)
	}
	r.uses[key] = n + 1
	r.owner[loc] = key
	return loc
}

// Lookup returns the canonical provenance path that produced loc.
func (r *Registry) Lookup(loc Location) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.owner[loc]
	return path, ok
}

// Duplicates reports how many paths were constructed more than once.
func (r *Registry) Duplicates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.uses {
		if n > 1 {
			count++
		}
	}
	return count
}

// Len returns the number of locations assigned so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owner)
}
