package frame

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/mitchellh/go-wordwrap"
	"github.com/specialistvlad/quire/internal/introspect"
	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/selector"
	"github.com/specialistvlad/quire/internal/store"
	"github.com/specialistvlad/quire/internal/styles"
	"github.com/zclconf/go-cty/cty"
)

// Snapshot is the published result of a finished pass.
type Snapshot struct {
	Index *introspect.Index
	Store *store.Snapshot
}

// EmptySnapshot returns the snapshot read by the first pass. Every read
// against it is deferred.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Index: introspect.Empty(), Store: store.Empty()}
}

// Complete reports whether the snapshot comes from a finished pass.
func (s *Snapshot) Complete() bool {
	return s.Store.Complete()
}

// Equal reports whether two snapshots hold equal indexes and equal stores.
func (s *Snapshot) Equal(other *Snapshot) bool {
	return s.Index.Equal(other.Index) && s.Store.Equal(other.Store)
}

// Tracker counts contextual reads across all frames of one pass.
type Tracker struct {
	reads    atomic.Int64
	deferred atomic.Int64

	mu      sync.Mutex
	missing map[location.Location]struct{}
}

func (t *Tracker) miss(locs ...location.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.missing == nil {
		t.missing = make(map[location.Location]struct{})
	}
	for _, loc := range locs {
		t.missing[loc] = struct{}{}
	}
}

// Missing returns the locations that reads asked for but the previous
// index did not hold, in location order.
func (t *Tracker) Missing() []location.Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]location.Location, 0, len(t.missing))
	for loc := range t.missing {
		out = append(out, loc)
	}
	slices.SortFunc(out, location.Location.Compare)
	return out
}

// Reads returns the number of reads that consulted the previous pass.
func (t *Tracker) Reads() int64 {
	return t.reads.Load()
}

// Deferred returns the number of reads that came back Deferred.
func (t *Tracker) Deferred() int64 {
	return t.deferred.Load()
}

// Env is shared by all frames of one pass.
type Env struct {
	Prior   *Snapshot
	Tracker *Tracker
	// Unresolved holds the locations a finished pass confirmed absent from
	// the document. Reads of them fail instead of deferring.
	Unresolved map[location.Location]bool
	// Width is the line width used by Measure.
	Width int
}

// Size is the measured extent of laid out text in character cells.
type Size struct {
	Width  int
	Height int
}

// Frame is the read-only context of one context-establishing construct.
type Frame struct {
	env    *Env
	styles styles.Chain
	loc    location.Location

	mu    sync.Mutex
	reads map[string]any
}

// New enters a frame at loc with the given style chain.
func New(env *Env, chain styles.Chain, loc location.Location) *Frame {
	return &Frame{
		env:    env,
		styles: chain,
		loc:    loc,
		reads:  make(map[string]any),
	}
}

// Nested enters a new frame below f. It shares the pass but not the reads
// memoized by f.
func (f *Frame) Nested(chain styles.Chain, loc location.Location) *Frame {
	return New(f.env, chain, loc)
}

// Here returns the location of the construct that established the frame.
func (f *Frame) Here() location.Location {
	return f.loc
}

// Styles returns the style chain in effect at the frame.
func (f *Frame) Styles() styles.Chain {
	return f.styles
}

// Style returns the style property active at the frame.
func (f *Frame) Style(key string) (cty.Value, bool) {
	return f.styles.Get(key)
}

// Measure lays out text at the page width and reports its extent.
func (f *Frame) Measure(text string) Size {
	if text == "" {
		return Size{}
	}
	width := f.env.Width
	if width <= 0 {
		width = 1
	}
	lines := strings.Split(wordwrap.WrapString(text, uint(width)), "\n")
	size := Size{Height: len(lines)}
	for _, line := range lines {
		size.Width = max(size.Width, utf8.RuneCountInString(line))
	}
	return size
}

// read memoizes a read of the previous pass under key and records it with
// the pass tracker.
func read[T any](f *Frame, key string, compute func(prior *Snapshot) Result[T]) Result[T] {
	f.env.Tracker.reads.Add(1)

	f.mu.Lock()
	cached, ok := f.reads[key]
	f.mu.Unlock()

	var r Result[T]
	if ok {
		r = cached.(Result[T])
	} else {
		prior := f.env.Prior
		if prior == nil || !prior.Complete() {
			r = Defer[T]()
		} else {
			r = compute(prior)
		}
		f.mu.Lock()
		if existing, ok := f.reads[key]; ok {
			r = existing.(Result[T])
		} else {
			f.reads[key] = r
		}
		f.mu.Unlock()
	}

	if r.Status == Deferred {
		f.env.Tracker.deferred.Add(1)
	}
	return r
}

// absent answers a read whose locations the previous index lacks. The read
// is deferred while the locations may still appear and fails once a
// finished pass has confirmed one of them absent.
func absent[T any](f *Frame, locs ...location.Location) Result[T] {
	f.env.Tracker.miss(locs...)
	for _, loc := range locs {
		if f.env.Unresolved[loc] {
			return Fail[T](fmt.Errorf("%w: %s", introspect.ErrUnresolvedLocation, loc))
		}
	}
	return Defer[T]()
}

// ordinal returns the document-order position of loc in the previous pass.
func (f *Frame) ordinal(prior *Snapshot, loc location.Location) Result[int] {
	ord, ok := prior.Index.Ordinal(loc)
	if !ok {
		return absent[int](f, loc)
	}
	return Resolve(ord)
}

// missingAnchors returns the locations a selector refers to that the index
// does not hold.
func missingAnchors(ix *introspect.Index, sel selector.Selector) []location.Location {
	switch s := sel.(type) {
	case selector.Loc:
		if !ix.Has(s.Location) {
			return []location.Location{s.Location}
		}
	case selector.And:
		var out []location.Location
		for _, item := range s.Items {
			out = append(out, missingAnchors(ix, item)...)
		}
		return out
	case selector.Or:
		var out []location.Location
		for _, item := range s.Items {
			out = append(out, missingAnchors(ix, item)...)
		}
		return out
	case selector.Not:
		return missingAnchors(ix, s.Inner)
	case selector.Before:
		return append(missingAnchors(ix, s.Inner), missingAnchors(ix, s.Target)...)
	case selector.After:
		return append(missingAnchors(ix, s.Inner), missingAnchors(ix, s.Target)...)
	}
	return nil
}

// Query returns the elements matching sel in document order.
func (f *Frame) Query(sel selector.Selector) Result[[]*model.Element] {
	return read(f, "query:"+sel.String(), func(prior *Snapshot) Result[[]*model.Element] {
		if locs := missingAnchors(prior.Index, sel); len(locs) > 0 {
			return absent[[]*model.Element](f, locs...)
		}
		return Resolve(prior.Index.Query(sel))
	})
}

// QueryOne returns the single element matching sel.
func (f *Frame) QueryOne(sel selector.Selector) Result[*model.Element] {
	return read(f, "one:"+sel.String(), func(prior *Snapshot) Result[*model.Element] {
		if locs := missingAnchors(prior.Index, sel); len(locs) > 0 {
			return absent[*model.Element](f, locs...)
		}
		e, err := prior.Index.QueryOne(sel)
		if err != nil {
			return Fail[*model.Element](err)
		}
		return Resolve(e)
	})
}

// QueryLabel returns the single element carrying label.
func (f *Frame) QueryLabel(label string) Result[*model.Element] {
	return read(f, "label:"+label, func(prior *Snapshot) Result[*model.Element] {
		e, err := prior.Index.QueryLabel(label)
		if err != nil {
			return Fail[*model.Element](err)
		}
		return Resolve(e)
	})
}

// CountBefore counts the elements matching sel up to and including the
// frame's location.
func (f *Frame) CountBefore(sel selector.Selector) Result[int] {
	return read(f, "count-before:"+sel.String(), func(prior *Snapshot) Result[int] {
		locs := missingAnchors(prior.Index, sel)
		if !prior.Index.Has(f.loc) {
			locs = append(locs, f.loc)
		}
		if len(locs) > 0 {
			return absent[int](f, locs...)
		}
		return Resolve(prior.Index.QueryCountBefore(sel, f.loc))
	})
}

// Locate returns the location of the single element matching sel.
func (f *Frame) Locate(sel selector.Selector) Result[location.Location] {
	return Map(f.QueryOne(sel), func(e *model.Element) (location.Location, error) {
		return e.Location, nil
	})
}

// Counter returns the value of a counter at the frame's location.
func (f *Frame) Counter(name string) Result[[]int] {
	return f.CounterAt(name, f.loc)
}

// CounterAt returns the value of a counter after every update at or before
// the element at loc.
func (f *Frame) CounterAt(name string, loc location.Location) Result[[]int] {
	return read(f, fmt.Sprintf("counter:%s:%s", name, loc), func(prior *Snapshot) Result[[]int] {
		return Map(f.ordinal(prior, loc), func(ord int) ([]int, error) {
			return prior.Store.CounterAt(name, ord), nil
		})
	})
}

// CounterFinal returns the value of a counter at the end of the document.
func (f *Frame) CounterFinal(name string) Result[[]int] {
	return read(f, "counter-final:"+name, func(prior *Snapshot) Result[[]int] {
		return Resolve(prior.Store.CounterFinal(name))
	})
}

// State returns the value of a state at the frame's location.
func (f *Frame) State(name string) Result[cty.Value] {
	return f.StateAt(name, f.loc)
}

// StateAt returns the value of a state after every update at or before the
// element at loc.
func (f *Frame) StateAt(name string, loc location.Location) Result[cty.Value] {
	return read(f, fmt.Sprintf("state:%s:%s", name, loc), func(prior *Snapshot) Result[cty.Value] {
		return Map(f.ordinal(prior, loc), func(ord int) (cty.Value, error) {
			return prior.Store.StateAt(name, ord), nil
		})
	})
}

// StateFinal returns the value of a state at the end of the document.
func (f *Frame) StateFinal(name string) Result[cty.Value] {
	return read(f, "state-final:"+name, func(prior *Snapshot) Result[cty.Value] {
		return Resolve(prior.Store.StateFinal(name))
	})
}

// PositionOf returns the physical position of the element at loc. It fails
// with introspect.ErrUnresolvedLocation when the element was never placed
// or does not exist in the document.
func (f *Frame) PositionOf(loc location.Location) Result[model.Position] {
	return read(f, "position:"+loc.String(), func(prior *Snapshot) Result[model.Position] {
		if !prior.Index.Has(loc) {
			return absent[model.Position](f, loc)
		}
		pos, err := prior.Index.PositionOf(loc)
		if err != nil {
			return Fail[model.Position](err)
		}
		return Resolve(pos)
	})
}

// PageOf returns the page number of the element at loc.
func (f *Frame) PageOf(loc location.Location) Result[int] {
	return read(f, "page:"+loc.String(), func(prior *Snapshot) Result[int] {
		if !prior.Index.Has(loc) {
			return absent[int](f, loc)
		}
		page, err := prior.Index.Page(loc)
		if err != nil {
			return Fail[int](err)
		}
		return Resolve(page)
	})
}

// Pages returns the page count of the previous pass.
func (f *Frame) Pages() Result[int] {
	return read(f, "pages", func(prior *Snapshot) Result[int] {
		return Resolve(prior.Index.Pages())
	})
}
