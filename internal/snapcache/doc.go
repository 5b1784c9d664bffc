// Package snapcache keeps the converged snapshot of a document between
// runs.
//
// A compilation seeded with the snapshot of an earlier, identical document
// converges in a single pass. The cache is an optimization only: a missing,
// stale or unreadable entry costs extra passes but never changes the
// output. Entries are keyed by the document hash and stored as a msgpack
// envelope, either in memory or in a SQLite database.
package snapcache
