// Package engine implements the request preparation pipeline: lookup
// traversal over the collision table, mapping of unmapped core lines from
// the freelist, the eviction-backed retry path, flush-before-reuse of dirty
// lines, and the refresh pass that re-validates a request's mapping after a
// suspension.
//
// The pipeline entry point is PrepareClines. A request leaves it in one of
// three states: all line locks held (proceed to I/O), parked on a line lock
// (resumed later through OnResume and the refresh interface), or failed with
// a mapping error (the caller falls back to pass-through).
package engine
