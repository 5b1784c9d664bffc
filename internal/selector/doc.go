// Package selector defines the predicates used to query the introspection
// index and the small textual language document authors write them in.
//
// The language:
//
//	heading                      elements of a kind
//	heading[level=1, body="x"]   ...with field equality predicates
//	<intro>                      the element(s) carrying a label
//	@0123...cdef                 the element at a location
//	a | b, a & b, !a, (a)        disjunction, conjunction, negation
//	before(sel, target)          matches of sel up to target (inclusive)
//	after(sel, target, exclusive) matches of sel strictly after target
//
// Every selector prints in a canonical form that parses back to an equal
// selector, which makes the canonical string usable as a cache key.
package selector
