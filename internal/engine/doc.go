// Package engine drives a document to a fixed point.
//
// A compilation runs the whole pipeline repeatedly. Every pass evaluates the
// document against the snapshot published by the previous pass, resolves
// its context closures, lays the result out, and freezes the update log into
// a new snapshot. The loop stops when a pass read nothing it could not
// answer and its snapshot equals the one it read from, or after
// MaxIterations passes.
//
// # States
//
// Each pass moves through Evaluating, LayingOut and Comparing. A compilation
// ends in Converged or Diverged. A pass whose evaluation reports errors
// outside any context frame ends the compilation in Aborted.
//
// # Diagnostics
//
// Diagnostics raised inside a frame are delayed: a pass collects them but
// only the final pass reports them, because an earlier pass may have been
// reading values that were not yet stable.
package engine
