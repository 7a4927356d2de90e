package core

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/blockcache/internal/concurrency"
	"github.com/hupe1980/blockcache/internal/freelist"
	"github.com/hupe1980/blockcache/internal/metadata"
	"github.com/hupe1980/blockcache/internal/partition"
	"github.com/hupe1980/blockcache/model"
)

// FallbackPTInactive disables the fallback pass-through error threshold.
const FallbackPTInactive = 0

// Config configures the cache core.
type Config struct {
	// CacheLineSize is the cache line size in bytes.
	CacheLineSize uint32
	// SectorSize is the sector size in bytes; must divide CacheLineSize.
	SectorSize uint32
	// Lines is the number of cache lines (the collision table size N).
	Lines uint32
	// HashBuckets is the hash table size; defaults to Lines.
	HashBuckets uint32
	// Partitions describes the user partitions; a single enabled "default"
	// partition is created when empty.
	Partitions []partition.Config
	// FallbackPTErrorThreshold trips pass-through mode once this many I/O
	// errors accumulated. FallbackPTInactive disables the mechanism.
	FallbackPTErrorThreshold int64
	// Logger receives engine logs; defaults to slog.Default.
	Logger *slog.Logger
}

// Cache is the cache handle owning all shared metadata aggregates. Requests
// borrow access to them through the concurrency manager.
type Cache struct {
	lineSize       uint32
	sectorSize     uint32
	sectorsPerLine uint32

	Metadata  *metadata.Store
	Freelist  *freelist.Freelist
	Parts     *partition.Table
	MetaLock  *concurrency.MetadataLock
	LineLocks *concurrency.LineLocks

	Eviction       EvictionPolicy
	Cleaning       []CleaningPolicy
	CleaningPolicy int
	Promotion      PromotionPolicy
	Cleaner        Cleaner

	Logger *slog.Logger
	// errLog rate-limits engine error records so an I/O error storm cannot
	// flood the log.
	errLog *rate.Limiter

	Stats *Stats

	running     atomic.Bool
	passThrough atomic.Bool

	fallbackPTCounter   atomic.Int64
	fallbackPTThreshold int64

	lastAccessMs atomic.Int64
}

// NewCache creates the cache core. Collaborator policies (Eviction,
// Cleaning, Promotion, Cleaner) must be wired before the first request.
func NewCache(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		lineSize:       cfg.CacheLineSize,
		sectorSize:     cfg.SectorSize,
		sectorsPerLine: cfg.CacheLineSize / cfg.SectorSize,
		Metadata: metadata.NewStore(metadata.Config{
			Lines:          cfg.Lines,
			Buckets:        cfg.HashBuckets,
			SectorsPerLine: cfg.CacheLineSize / cfg.SectorSize,
		}),
		Freelist:            freelist.New(cfg.Lines),
		LineLocks:           concurrency.NewLineLocks(cfg.Lines),
		Logger:              logger,
		errLog:              rate.NewLimiter(rate.Every(time.Second), 5),
		Stats:               NewStats(),
		fallbackPTThreshold: cfg.FallbackPTErrorThreshold,
	}

	parts, err := partition.NewTable(cfg.Lines, cfg.Partitions)
	if err != nil {
		// Partition count is validated by the facade before reaching here.
		panic(err)
	}
	c.Parts = parts
	c.MetaLock = concurrency.NewMetadataLock(c.Metadata.Buckets())
	c.running.Store(true)

	return c
}

// CacheLineSize returns the cache line size in bytes.
func (c *Cache) CacheLineSize() uint32 { return c.lineSize }

// SectorSize returns the sector size in bytes.
func (c *Cache) SectorSize() uint32 { return c.sectorSize }

// SectorsPerLine returns the number of sectors per cache line.
func (c *Cache) SectorsPerLine() uint32 { return c.sectorsPerLine }

// LineEndSector returns the index of a line's last sector.
func (c *Cache) LineEndSector() uint32 { return c.sectorsPerLine - 1 }

// Lines returns the number of cache lines.
func (c *Cache) Lines() uint32 { return c.Metadata.Entries() }

// IsRunning reports whether the cache accepts requests.
func (c *Cache) IsRunning() bool { return c.running.Load() }

// Stop clears the running state. Used by the engine on fatal errors.
func (c *Cache) Stop() { c.running.Store(false) }

// IsPassThrough reports whether fallback pass-through mode is active.
func (c *Cache) IsPassThrough() bool { return c.passThrough.Load() }

// ErrLogAllow reports whether an engine error record may be emitted under
// the rate limit.
func (c *Cache) ErrLogAllow() bool { return c.errLog.Allow() }

// IncFallbackPTErrorCounter accounts one I/O error towards the fallback
// pass-through threshold. Only the increment that reaches the threshold
// logs; pass-through mode stays latched from then on.
func (c *Cache) IncFallbackPTErrorCounter() {
	if c.fallbackPTThreshold == FallbackPTInactive {
		return
	}

	if c.fallbackPTCounter.Add(1) == c.fallbackPTThreshold {
		c.passThrough.Store(true)
		c.Logger.Info("error threshold reached, fallback pass through activated",
			slog.Int64("threshold", c.fallbackPTThreshold))
	}
}

// FallbackPTErrorCounter returns the accumulated error count.
func (c *Cache) FallbackPTErrorCounter() int64 {
	return c.fallbackPTCounter.Load()
}

// TouchLastAccess records cache activity for non-internal requests.
func (c *Cache) TouchLastAccess() {
	c.lastAccessMs.Store(time.Now().UnixMilli())
}

// LastAccessMs returns the last recorded access time in Unix milliseconds.
func (c *Cache) LastAccessMs() int64 { return c.lastAccessMs.Load() }

// SetCacheLineInvalidNoFlush clears the valid bits of sectors [start, end]
// without issuing any I/O. When the line's last valid sector goes away the
// mapping is purged: the line leaves its collision chain and partition,
// drops out of the eviction policy, loses its dirty bits and returns to the
// freelist.
//
// Callers hold the line's collision shared-access guard plus either the
// bucket write lock or the global exclusive metadata lock.
func (c *Cache) SetCacheLineInvalidNoFlush(start, end uint32, line model.CacheLine) {
	c.Metadata.ClearValidSectors(line, start, end)

	if c.Metadata.TestAnyValid(line) {
		return
	}

	if _, owned := c.Metadata.GetCoreInfo(line); !owned {
		return
	}

	part := c.Metadata.GetPartitionID(line)
	c.Metadata.RemoveFromCollision(line)
	c.Metadata.ClearDirtySectors(line, 0, c.LineEndSector())
	c.Parts.Remove(part, line)
	if c.Eviction != nil {
		c.Eviction.RemoveCacheLine(line)
	}
	c.Freelist.Push(line)
}

// CleaningInitializer returns the active cleaning policy's per-line init
// hook, or nil when the policy keeps no per-line state.
func (c *Cache) CleaningInitializer() CacheBlockInitializer {
	if c.CleaningPolicy < 0 || c.CleaningPolicy >= len(c.Cleaning) {
		return nil
	}
	init, ok := c.Cleaning[c.CleaningPolicy].(CacheBlockInitializer)
	if !ok {
		return nil
	}
	return init
}
