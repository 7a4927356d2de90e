package blockcache

import (
	"github.com/hupe1980/blockcache/internal/cleaner"
	"github.com/hupe1980/blockcache/internal/cleaning"
	"github.com/hupe1980/blockcache/internal/concurrency"
	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/internal/engine"
	"github.com/hupe1980/blockcache/internal/eviction"
	"github.com/hupe1980/blockcache/internal/promotion"
	"github.com/hupe1980/blockcache/model"
)

// Default geometry.
const (
	DefaultCacheLineSize = 4096
	DefaultSectorSize    = 512
)

// Aliases surfacing the core types collaborators work with.
type (
	// Core is the cache core aggregate handed to policy factories.
	Core = core.Cache
	// Request is one multi-line I/O request.
	Request = core.Request
	// Queue is a per-worker request FIFO.
	Queue = core.Queue
	// MapEntry is the per-core-line mapping state of a request.
	MapEntry = core.MapEntry
	// Info is a request's aggregate mapping counters.
	Info = core.Info
	// IOIf is a pair of I/O entry points.
	IOIf = core.IOIf
	// EngineCallbacks is supplied by the engine variant driving a request.
	EngineCallbacks = core.EngineCallbacks
	// EvictionPolicy picks reclaim victims and tracks hotness.
	EvictionPolicy = core.EvictionPolicy
	// PromotionPolicy gates admission of misses.
	PromotionPolicy = core.PromotionPolicy
	// CleanerAttribs parameterizes one cleaner invocation.
	CleanerAttribs = core.CleanerAttribs
	// FlushFn writes one cache line back to its core device.
	FlushFn = cleaner.FlushFn
	// LockType selects the per-line lock mode of an engine variant.
	LockType = concurrency.LockType
	// LockStatus is the outcome of line-lock acquisition.
	LockStatus = concurrency.Status
	// PartSnapshot is a point-in-time copy of partition counters.
	PartSnapshot = core.PartSnapshot
)

// Lookup statuses of a map entry.
const (
	LookupMiss     = core.LookupMiss
	LookupHit      = core.LookupHit
	LookupInserted = core.LookupInserted
	LookupRemapped = core.LookupRemapped
)

// Line lock modes.
const (
	LockNone  = concurrency.LockNone
	LockRead  = concurrency.LockRead
	LockWrite = concurrency.LockWrite
)

// Line lock outcomes.
const (
	LockAcquired = concurrency.Acquired
	LockPending  = concurrency.Pending
)

// Request directions.
const (
	RWRead  = model.RWRead
	RWWrite = model.RWWrite
)

// Cache is the public handle of one caching engine instance.
type Cache struct {
	core *core.Cache
}

// New constructs a cache with the default LRU eviction, nop cleaning policy,
// always-promote admission and the default cleaner with a no-op flush
// function, unless overridden by options.
func New(opts ...Option) (*Cache, error) {
	o := options{
		cacheLineSize:   DefaultCacheLineSize,
		sectorSize:      DefaultSectorSize,
		cleanerInflight: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Config{
		CacheLineSize: o.cacheLineSize,
		SectorSize:    o.sectorSize,
		Lines:         o.lines,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(o.partitions) > model.MaxParts {
		return nil, ErrInvalidConfig
	}

	logger := o.logger
	if logger == nil {
		logger = NewLogger(nil)
	}

	cc := core.NewCache(core.Config{
		CacheLineSize:            o.cacheLineSize,
		SectorSize:               o.sectorSize,
		Lines:                    o.lines,
		HashBuckets:              o.hashBuckets,
		Partitions:               o.partitions,
		FallbackPTErrorThreshold: o.fallbackPTErrorThreshold,
		Logger:                   logger.Logger,
	})

	if o.evictionFactory != nil {
		cc.Eviction = o.evictionFactory(cc)
	} else {
		cc.Eviction = eviction.NewLRU(cc)
	}

	if o.promotionFactory != nil {
		cc.Promotion = o.promotionFactory(cc)
	} else {
		cc.Promotion = promotion.Always{}
	}

	cc.Cleaning = []core.CleaningPolicy{cleaning.Nop{}}
	cc.CleaningPolicy = 0

	flush := o.cleanerFlush
	if flush == nil {
		flush = func(model.CacheLine) error { return nil }
	}
	cc.Cleaner = cleaner.New(cc, flush, o.cleanerInflight)

	return &Cache{core: cc}, nil
}

// NewQueue creates a request queue. kick wakes the queue's worker and may be
// nil for poll-driven consumers.
func NewQueue(kick func(q *Queue, allowSync bool)) *Queue {
	return core.NewQueue(kick)
}

// Core exposes the cache core aggregate for collaborators and tests.
func (c *Cache) Core() *Core { return c.core }

// NewRequest allocates a request against this cache. The caller wires the
// queue, engine callbacks, completion and I/O interface before submitting.
func (c *Cache) NewRequest(coreID model.CoreID, rw model.RW, partID model.PartID, bytePosition uint64, byteLength uint32, q *Queue) *Request {
	req := core.NewRequest(c.core, coreID, rw, partID, bytePosition, byteLength)
	req.Queue = q
	return req
}

// PrepareClines runs the preparation pipeline for the request.
func (c *Cache) PrepareClines(req *Request) (LockStatus, error) {
	if !c.core.IsRunning() {
		return 0, ErrCacheNotRunning
	}
	return engine.PrepareClines(req)
}

// Traverse resolves the request's core lines against the current mapping.
func (c *Cache) Traverse(req *Request) { engine.Traverse(req) }

// Check re-validates the request's mapping; false means it went
// inconsistent.
func (c *Cache) Check(req *Request) bool { return engine.Check(req) }

// MapCacheLine assigns a specific cache line to a request entry.
func (c *Cache) MapCacheLine(req *Request, idx uint32, line model.CacheLine) {
	engine.MapCacheLine(req, idx, line)
}

// Clean fires flush-before-reuse for the request's dirty hits.
func (c *Cache) Clean(req *Request) { engine.Clean(req) }

// OnResume is the resume callback engine variants should install: it
// schedules the refresh pass for a request whose line locks were granted
// after a wait.
func (c *Cache) OnResume(req *Request) { engine.OnResume(req) }

// PushReqBack queues a request at the back of its queue.
func (c *Cache) PushReqBack(req *Request, allowSync bool) { engine.PushReqBack(req, allowSync) }

// PushReqFront queues a request at the front of its queue.
func (c *Cache) PushReqFront(req *Request, allowSync bool) { engine.PushReqFront(req, allowSync) }

// UnlockReq releases the request's line locks after the I/O phase.
func (c *Cache) UnlockReq(req *Request) { engine.UnlockReq(req) }

// UpdateBlockStats accounts the request's transferred volume.
func (c *Cache) UpdateBlockStats(req *Request) { engine.UpdateBlockStats(req) }

// UpdateRequestStats classifies the request as full/partial hit or miss.
func (c *Cache) UpdateRequestStats(req *Request) { engine.UpdateRequestStats(req) }

// Error records an engine-level failure for the request; stopCache stops
// the cache.
func (c *Cache) Error(req *Request, stopCache bool, msg string) {
	engine.Error(req, stopCache, msg)
}

// IncFallbackPTErrorCounter accounts one I/O error towards the fallback
// pass-through threshold.
func (c *Cache) IncFallbackPTErrorCounter() { c.core.IncFallbackPTErrorCounter() }

// IsPassThrough reports whether fallback pass-through mode is active.
func (c *Cache) IsPassThrough() bool { return c.core.IsPassThrough() }

// IsRunning reports whether the cache accepts requests.
func (c *Cache) IsRunning() bool { return c.core.IsRunning() }

// Stats returns a snapshot of one partition's counters.
func (c *Cache) Stats(part model.PartID) PartSnapshot { return c.core.Stats.Snapshot(part) }

// SetPartitionEnabled flips a partition's enable flag.
func (c *Cache) SetPartitionEnabled(part model.PartID, enabled bool) {
	c.core.Parts.SetEnabled(part, enabled)
}
