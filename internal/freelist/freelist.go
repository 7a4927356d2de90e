// Package freelist tracks the pool of currently unowned cache-line indices.
package freelist

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/blockcache/model"
)

// Freelist is the pool of free cache lines. It is safe for concurrent use.
//
// Free lines are kept in a bitmap; Pop scans from a rotating hint so that
// consecutive allocations spread across the cache device instead of
// clustering at low indices.
type Freelist struct {
	mu    sync.Mutex
	free  *bitset.BitSet
	hint  uint
	lines uint32

	count atomic.Int64
}

// New creates a freelist with all lines in [0, lines) free.
func New(lines uint32) *Freelist {
	f := &Freelist{
		free:  bitset.New(uint(lines)),
		lines: lines,
	}
	for i := uint(0); i < uint(lines); i++ {
		f.free.Set(i)
	}
	f.count.Store(int64(lines))
	return f
}

// Pop removes and returns a free cache line. ok is false when the pool is
// empty; the caller must not mutate partition membership in that case.
func (f *Freelist) Pop() (model.CacheLine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, ok := f.free.NextSet(f.hint)
	if !ok {
		idx, ok = f.free.NextSet(0)
	}
	if !ok {
		return 0, false
	}

	f.free.Clear(idx)
	f.hint = idx + 1
	if f.hint >= uint(f.lines) {
		f.hint = 0
	}
	f.count.Add(-1)

	return model.CacheLine(idx), true
}

// Push returns a cache line to the pool.
func (f *Freelist) Push(line model.CacheLine) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.free.Test(uint(line)) {
		return
	}
	f.free.Set(uint(line))
	f.count.Add(1)
}

// Contains returns true when the line is currently free.
func (f *Freelist) Contains(line model.CacheLine) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.free.Test(uint(line))
}

// Count returns the number of free cache lines.
func (f *Freelist) Count() uint32 {
	return uint32(f.count.Load())
}
