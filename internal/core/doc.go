// Package core holds the cache aggregate and the request object shared by
// the engine and its collaborators: the metadata store, freelist, partition
// table and concurrency manager hang off the Cache; per-request state (map
// entries, info counters, line-lock token, I/O interface) lives on the
// Request. Collaborator contracts (eviction, cleaning, promotion, cleaner)
// are defined here so policies and the engine depend on the same types.
package core
