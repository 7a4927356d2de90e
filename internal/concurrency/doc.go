// Package concurrency implements the three locking tiers of the cache:
//
//  1. Hash-bucket read/write locks, taken in sorted bucket order for all
//     buckets a request touches. The whole held set can be upgraded from
//     read to write.
//  2. Per-cache-line read/write locks with asynchronous acquisition: a
//     request that cannot take all its line locks immediately parks waiters
//     and is resumed via callback once the last lock is granted.
//  3. A global exclusive metadata lock, held only around the eviction/remap
//     path. Hash-bucket operations hold the global lock shared, so exclusive
//     access excludes every bucket holder.
//
// Lock order is bucket locks, then line locks, then (never while holding
// bucket locks) the exclusive lock.
package concurrency
