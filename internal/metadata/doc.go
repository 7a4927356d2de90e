// Package metadata implements the in-memory metadata store of the cache: the
// cache-line slot array, the hash-bucket collision chains, per-line partition
// ids, and the per-sector valid and dirty maps.
//
// The store holds no locks of its own except the per-line collision
// shared-access guards. Callers must follow the locking discipline of the
// concurrency manager: a hash-bucket lock (read or write) whenever a bucket's
// collision chain is traversed or mutated, and the collision shared-access
// guard around changes to a line's chain membership and sector bits.
//
// Cache lines are slots in a flat array; collision chains thread through the
// slots with integer next/prev indices, so there are no pointer cycles and no
// reclamation hazards.
package metadata
