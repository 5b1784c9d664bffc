// Package frame implements the Context Frame and the deferred-value marker.
//
// # Core Concepts
//
// A Frame is entered by a context-establishing construct (a `context` block,
// a page footer, a numbered heading). It captures the construct's location
// and the style chain in effect there, and answers contextual reads against
// the Snapshot of the previous pass: its Introspection Index and its frozen
// counter/state store.
//
// Every read returns a Result, a three-way sum type:
//
//   - **Resolved:** the value is known.
//   - **Deferred:** the answer depends on information the previous pass did
//     not have (the first pass, or a location the previous index lacks).
//   - **Failed:** a genuine error, such as an ambiguous query.
//
// Inside document expressions a Deferred result becomes an unknown cty
// value, which propagates through operators, templates and calls. Content
// whose value stays unknown is rendered as a placeholder and the pass is
// marked as not convergible through the pass-wide Tracker.
//
// # Immutability
//
// A frame reads only immutable inputs, and it memoizes every read at entry.
// Updates performed inside the frame land in the current pass's log and are
// therefore invisible to it; a nested frame is a new frame and observes them
// in the next pass.
package frame
