package blockcache

import (
	"github.com/hupe1980/blockcache/internal/cleaner"
	"github.com/hupe1980/blockcache/internal/core"
)

type options struct {
	cacheLineSize            uint32
	sectorSize               uint32
	lines                    uint32
	hashBuckets              uint32
	partitions               []PartitionConfig
	fallbackPTErrorThreshold int64
	logger                   *Logger

	evictionFactory  func(*core.Cache) core.EvictionPolicy
	promotionFactory func(*core.Cache) core.PromotionPolicy
	cleanerFlush     cleaner.FlushFn
	cleanerInflight  int64
}

// Option configures the cache constructor.
type Option func(*options)

// WithCacheLineSize sets the cache line size in bytes (default 4096).
func WithCacheLineSize(size uint32) Option {
	return func(o *options) {
		o.cacheLineSize = size
	}
}

// WithSectorSize sets the sector size in bytes (default 512). It must
// divide the cache line size.
func WithSectorSize(size uint32) Option {
	return func(o *options) {
		o.sectorSize = size
	}
}

// WithLines sets the number of cache lines, i.e. the collision table size.
func WithLines(lines uint32) Option {
	return func(o *options) {
		o.lines = lines
	}
}

// WithHashBuckets sets the hash table size. Defaults to the number of cache
// lines.
func WithHashBuckets(buckets uint32) Option {
	return func(o *options) {
		o.hashBuckets = buckets
	}
}

// WithPartitions defines the cache partitions in id order. Without this
// option a single enabled "default" partition spans the whole cache.
func WithPartitions(parts ...PartitionConfig) Option {
	return func(o *options) {
		o.partitions = parts
	}
}

// WithFallbackPTErrorThreshold trips pass-through mode once the given
// number of I/O errors accumulated. Zero (the default) disables the
// mechanism.
func WithFallbackPTErrorThreshold(threshold int64) Option {
	return func(o *options) {
		o.fallbackPTErrorThreshold = threshold
	}
}

// WithLogger sets the logger. Defaults to a text logger on stderr.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NewLogger(nil)
		}
		o.logger = logger
	}
}

// WithEvictionPolicy replaces the default LRU eviction policy. The factory
// receives the cache core so the policy can reach metadata and locks.
func WithEvictionPolicy(factory func(*core.Cache) core.EvictionPolicy) Option {
	return func(o *options) {
		o.evictionFactory = factory
	}
}

// WithPromotionPolicy replaces the default always-promote admission policy.
func WithPromotionPolicy(factory func(*core.Cache) core.PromotionPolicy) Option {
	return func(o *options) {
		o.promotionFactory = factory
	}
}

// WithCleanerFlush wires the writeback function used by the default
// cleaner, with at most maxInflight concurrent flushes.
func WithCleanerFlush(fn cleaner.FlushFn, maxInflight int64) Option {
	return func(o *options) {
		o.cleanerFlush = fn
		o.cleanerInflight = maxInflight
	}
}
