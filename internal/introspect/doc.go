// Package introspect provides the Introspection Index: an immutable,
// queryable snapshot of every located element produced by one compilation
// pass, and the Query Engine that evaluates selectors against it.
//
// # Why the Index Exists
//
// Document content may ask questions whose answers depend on the finished
// document: which headings exist, on what page a figure landed, how many
// elements of a kind precede a point. Mid-evaluation state cannot answer
// these, because it does not yet reflect final document order or final
// layout. The index is therefore built from a completed layout pass and
// consulted by the next pass.
//
// # Lifecycle
//
// The index is:
//  1. **Built** by the layout stage through a Builder, one element at a time
//     in document order. The position of an element in that sequence is its
//     ordinal.
//  2. **Published** by Builder.Build. From then on it is never modified.
//  3. **Read** concurrently by every context frame of the following pass.
//  4. **Compared** against its successor by the convergence driver and then
//     discarded.
//
// Query results are memoized per canonical selector string. The memo is the
// only mutable part of an Index and is guarded by a lock, so concurrent reads
// remain safe.
//
// # Relationship with Other Components
//
//   - **layout:** feeds elements with their physical positions into a Builder.
//   - **frame:** resolves contextual reads (queries, positions, ordinals for
//     counter lookups) against the previous pass's index.
//   - **engine:** compares consecutive indexes with Equal to detect convergence.
package introspect
