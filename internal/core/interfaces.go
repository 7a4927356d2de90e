package core

import (
	"github.com/hupe1980/blockcache/internal/concurrency"
	"github.com/hupe1980/blockcache/model"
)

// EvictionPolicy decides which cache lines to reclaim and tracks hotness.
// Implementations keep their own structures (e.g. an LRU list threaded
// through the slot arena) and are notified on inserts, hot accesses and
// frees.
type EvictionPolicy interface {
	// InitCacheLine registers a line that just started hosting data.
	InitCacheLine(line model.CacheLine)
	// SetHot marks a line as recently accessed.
	SetHot(line model.CacheLine)
	// RemoveCacheLine drops a line that returned to the freelist.
	RemoveCacheLine(line model.CacheLine)
	// EvictDo reclaims up to count cache lines for the request, returning
	// ErrNoVictims when it could not supply them all. Called under the
	// global exclusive metadata lock.
	EvictDo(req *Request, count uint32) error
}

// CleaningPolicy is the per-cache dirty-data bookkeeping policy. The cache
// holds a registry of policies indexed by id; only the selected one is
// consulted.
type CleaningPolicy interface {
	Name() string
}

// CacheBlockInitializer is implemented by cleaning policies that track state
// per cache line; the hook fires when a line first hosts data.
type CacheBlockInitializer interface {
	InitCacheBlock(line model.CacheLine)
}

// PromotionPolicy decides whether a miss is worth admitting into the cache.
type PromotionPolicy interface {
	// ShouldPromote returns false when the request's misses should stay in
	// pass-through instead of being inserted.
	ShouldPromote(req *Request) bool
	// Purge forgets any state kept for the request's core lines after they
	// have been inserted.
	Purge(req *Request)
}

// CleanerAttribs parameterizes one cleaner invocation.
type CleanerAttribs struct {
	// LockCacheline tells the cleaner whether it must take line locks
	// itself; the engine already holds them for its requests.
	LockCacheline bool

	// Getter yields the cache lines to clean, in order. ok is false when
	// the iteration is exhausted.
	Getter func() (line model.CacheLine, ok bool)

	// Count is the number of lines the getter will yield.
	Count uint32

	// Complete is invoked exactly once when all writeback finished, with
	// the first error encountered, if any.
	Complete func(error)

	// Queue is the I/O queue the cleaning runs against.
	Queue *Queue
}

// Cleaner fires writeback for dirty cache lines. Always asynchronous: Fire
// returns before Complete is invoked.
type Cleaner interface {
	Fire(attribs *CleanerAttribs)
}

// EngineCallbacks is supplied by the engine variant driving a request.
type EngineCallbacks interface {
	// GetLockType returns the kind of per-line lock the variant needs for
	// its actual I/O phase.
	GetLockType(req *Request) concurrency.LockType
	// Resume is invoked when a suspended request's last line lock is
	// granted.
	Resume(req *Request)
}

// IOIf is a pair of I/O entry points. The engine transiently swaps in a
// refresh interface after a suspension; the original interface is saved on
// the request and restored once the mapping re-validates.
type IOIf struct {
	Read  func(req *Request)
	Write func(req *Request)
}
