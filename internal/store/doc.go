// Package store implements document-scoped counters and states as
// append-only update logs.
//
// # Why Logs Instead of Cells
//
// Counters and states look like global mutable variables to document
// authors, but modeling them as shared cells would make the result depend on
// the order in which concurrent workers happen to run. Instead, every update
// is appended to a Log tagged with the document-order ordinal of the element
// that performs it. Freezing the log sorts it by ordinal and folds each key
// into an immutable Snapshot, so "the value at a point" becomes a pure
// function of the update sequence.
//
// # Lifecycle
//
//  1. The layout stage appends updates while it places elements.
//  2. Freeze produces the Snapshot of the pass.
//  3. Context frames of the next pass read the Snapshot concurrently.
//  4. The convergence driver compares the Snapshot with its predecessor.
package store
