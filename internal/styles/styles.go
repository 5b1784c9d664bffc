// Package styles implements the style chain: an immutable, copy-on-branch
// list of style properties set by `set` rules.
package styles

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Chain is an immutable style chain. The zero value is the empty chain.
// Extending a chain never affects other chains sharing the same tail, so a
// branch can be handed to a concurrent worker without copying.
type Chain struct {
	head *link
}

type link struct {
	key   string
	value cty.Value
	next  *link
}

// Set returns a new chain in which key resolves to value.
func (c Chain) Set(key string, value cty.Value) Chain {
	return Chain{head: &link{key: key, value: value, next: c.head}}
}

// Get returns the innermost value set for key.
func (c Chain) Get(key string) (cty.Value, bool) {
	for l := c.head; l != nil; l = l.next {
		if l.key == key {
			return l.value, true
		}
	}
	return cty.NilVal, false
}

// String returns the string value of key, or fallback when key is unset or
// not a known string.
func (c Chain) String(key, fallback string) string {
	v, ok := c.Get(key)
	if !ok || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return fallback
	}
	return v.AsString()
}

// Keys returns every key set anywhere in the chain, sorted.
func (c Chain) Keys() []string {
	seen := make(map[string]struct{})
	for l := c.head; l != nil; l = l.next {
		seen[l.key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Depth returns the number of entries in the chain.
func (c Chain) Depth() int {
	n := 0
	for l := c.head; l != nil; l = l.next {
		n++
	}
	return n
}
