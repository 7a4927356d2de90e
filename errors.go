package blockcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/blockcache/internal/core"
)

var (
	// ErrNoLock is returned when a request's cache-line locks could not be
	// acquired; the request should fall back to pass-through.
	ErrNoLock = core.ErrNoLock

	// ErrInval marks a request whose mapping went inconsistent while it was
	// suspended.
	ErrInval = core.ErrInval

	// ErrNoVictims is returned when eviction could not reclaim enough cache
	// lines.
	ErrNoVictims = core.ErrNoVictims

	// ErrCacheNotRunning is returned for requests against a stopped cache.
	ErrCacheNotRunning = core.ErrCacheNotRunning
)

// ErrInvalidGeometry indicates an unusable cache line / sector size
// combination.
type ErrInvalidGeometry struct {
	CacheLineSize uint32
	SectorSize    uint32
}

func (e *ErrInvalidGeometry) Error() string {
	return fmt.Sprintf("invalid geometry: line size %d, sector size %d", e.CacheLineSize, e.SectorSize)
}

// ErrInvalidConfig wraps a configuration validation failure.
var ErrInvalidConfig = errors.New("blockcache: invalid configuration")
