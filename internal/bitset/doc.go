// Package bitset provides a fixed-size, thread-safe bitset built on atomic
// word operations.
//
// It backs the per-sector valid and dirty maps of the cache: one bit per
// (cache line, sector) pair. Single-bit and range mutations are atomic per
// word, which makes concurrent updates to different cache lines safe without
// additional locking. Range queries spanning multiple words are not atomic as
// a whole; callers serialize per-line access through the concurrency manager.
package bitset
