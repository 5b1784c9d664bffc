package introspect

import (
	"slices"

	"github.com/specialistvlad/quire/internal/location"
	"github.com/specialistvlad/quire/internal/model"
	"github.com/specialistvlad/quire/internal/selector"
)

// Query returns every element matching sel in document order.
func (ix *Index) Query(sel selector.Selector) []*model.Element {
	ords := ix.cached(sel)
	out := make([]*model.Element, len(ords))
	for i, o := range ords {
		out[i] = ix.elems[o]
	}
	return out
}

// QueryOne returns the single element matching sel. It fails with a
// *MatchError when there is no match or more than one.
func (ix *Index) QueryOne(sel selector.Selector) (*model.Element, error) {
	ords := ix.cached(sel)
	if len(ords) != 1 {
		return nil, &MatchError{Selector: sel.String(), Count: len(ords)}
	}
	return ix.elems[ords[0]], nil
}

// QueryLabel returns the single element carrying label. It fails with a
// *LabelError when the label is missing or used more than once.
func (ix *Index) QueryLabel(label string) (*model.Element, error) {
	ords := ix.labels[label]
	if len(ords) != 1 {
		return nil, &LabelError{Label: label, Count: len(ords)}
	}
	return ix.elems[ords[0]], nil
}

// QueryCountBefore counts the elements matching sel up to and including loc.
func (ix *Index) QueryCountBefore(sel selector.Selector, loc location.Location) int {
	return len(ix.cached(selector.Before{Inner: sel, Target: selector.At(loc), Inclusive: true}))
}

func (ix *Index) cached(sel selector.Selector) []int {
	key := sel.String()

	ix.mu.RLock()
	ords, ok := ix.cache[key]
	ix.mu.RUnlock()
	if ok {
		return ords
	}

	ords = ix.eval(sel)

	ix.mu.Lock()
	ix.cache[key] = ords
	ix.mu.Unlock()
	return ords
}

// eval returns the sorted ordinals matched by sel.
func (ix *Index) eval(sel selector.Selector) []int {
	switch s := sel.(type) {
	case selector.Elem:
		var out []int
		for _, o := range ix.kinds[s.Kind] {
			if selector.Matches(s, ix.elems[o]) {
				out = append(out, o)
			}
		}
		return out
	case selector.Label:
		return slices.Clone(ix.labels[s.Name])
	case selector.Loc:
		if o, ok := ix.ordinal[s.Location]; ok {
			return []int{o}
		}
		return nil
	case selector.Or:
		var out []int
		for _, item := range s.Items {
			out = append(out, ix.eval(item)...)
		}
		slices.Sort(out)
		return slices.Compact(out)
	case selector.And:
		if len(s.Items) == 0 {
			return nil
		}
		out := ix.eval(s.Items[0])
		for _, item := range s.Items[1:] {
			keep := ix.eval(item)
			out = slices.DeleteFunc(out, func(o int) bool {
				_, found := slices.BinarySearch(keep, o)
				return !found
			})
		}
		return out
	case selector.Not:
		exclude := ix.eval(s.Inner)
		var out []int
		for o := range ix.elems {
			if _, found := slices.BinarySearch(exclude, o); !found {
				out = append(out, o)
			}
		}
		return out
	case selector.Before:
		anchor, ok := ix.anchor(s.Target)
		if !ok {
			return nil
		}
		return slices.DeleteFunc(ix.eval(s.Inner), func(o int) bool {
			return o > anchor || o == anchor && !s.Inclusive
		})
	case selector.After:
		anchor, ok := ix.anchor(s.Target)
		if !ok {
			return nil
		}
		return slices.DeleteFunc(ix.eval(s.Inner), func(o int) bool {
			return o < anchor || o == anchor && !s.Inclusive
		})
	}
	return nil
}

// anchor resolves the target of a temporal selector to an ordinal: the
// location itself, or the first match of a selector.
func (ix *Index) anchor(target selector.Selector) (int, bool) {
	ords := ix.eval(target)
	if len(ords) == 0 {
		return 0, false
	}
	return ords[0], true
}
