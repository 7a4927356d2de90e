// Package cleaner provides the default cleaner: it drains a getter of dirty
// cache lines, writes each back through a caller-supplied flush function,
// and clears the dirty bits of successfully flushed lines.
package cleaner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// FlushFn writes one cache line's dirty data back to its core device.
type FlushFn func(line model.CacheLine) error

// Cleaner is the default writeback cleaner. Fire is always asynchronous;
// in-flight flushes are bounded by a semaphore.
type Cleaner struct {
	cache *core.Cache
	flush FlushFn
	sem   *semaphore.Weighted
}

// New creates a cleaner flushing through fn with at most maxInflight
// concurrent flushes.
func New(cache *core.Cache, fn FlushFn, maxInflight int64) *Cleaner {
	if maxInflight < 1 {
		maxInflight = 1
	}
	return &Cleaner{
		cache: cache,
		flush: fn,
		sem:   semaphore.NewWeighted(maxInflight),
	}
}

// Fire starts writeback for the lines the getter yields and invokes
// attribs.Complete once all of them finished, with the first error if any.
func (c *Cleaner) Fire(attribs *core.CleanerAttribs) {
	go func() {
		var (
			wg       sync.WaitGroup
			errOnce  sync.Once
			firstErr error
		)

		for {
			line, ok := attribs.Getter()
			if !ok {
				break
			}

			if attribs.LockCacheline && !c.cache.LineLocks.TryLockWr(line) {
				errOnce.Do(func() { firstErr = core.ErrNoLock })
				continue
			}

			if err := c.sem.Acquire(context.Background(), 1); err != nil {
				errOnce.Do(func() { firstErr = err })
				break
			}

			wg.Add(1)
			go func(line model.CacheLine) {
				defer wg.Done()
				defer c.sem.Release(1)
				if attribs.LockCacheline {
					defer c.cache.LineLocks.UnlockWr(line)
				}

				if err := c.flush(line); err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}

				meta := c.cache.Metadata
				meta.StartCollisionSharedAccess(line)
				meta.ClearDirtySectors(line, 0, c.cache.LineEndSector())
				meta.EndCollisionSharedAccess(line)
			}(line)
		}

		wg.Wait()
		attribs.Complete(firstErr)
	}()
}
