// Package eviction provides the default LRU eviction policy. The recency
// list is threaded through the cache-line slot arena with integer next/prev
// indices; there are no per-line allocations.
package eviction

import (
	"sync"

	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// LRU is an index-linked least-recently-used policy over the whole cache.
// Victims are taken from the cold end; dirty or in-use lines are skipped —
// dirty data is the cleaner's job, not eviction's.
type LRU struct {
	cache *core.Cache

	mu     sync.Mutex
	next   []uint32
	prev   []uint32
	inList []bool
	head   uint32
	tail   uint32
	nilIdx uint32
}

// NewLRU creates the policy for the given cache.
func NewLRU(cache *core.Cache) *LRU {
	lines := cache.Lines()
	l := &LRU{
		cache:  cache,
		next:   make([]uint32, lines),
		prev:   make([]uint32, lines),
		inList: make([]bool, lines),
		head:   lines,
		tail:   lines,
		nilIdx: lines,
	}
	for i := range l.next {
		l.next[i] = lines
		l.prev[i] = lines
	}
	return l
}

func (l *LRU) unlink(line uint32) {
	if l.prev[line] != l.nilIdx {
		l.next[l.prev[line]] = l.next[line]
	} else {
		l.head = l.next[line]
	}
	if l.next[line] != l.nilIdx {
		l.prev[l.next[line]] = l.prev[line]
	} else {
		l.tail = l.prev[line]
	}
	l.next[line] = l.nilIdx
	l.prev[line] = l.nilIdx
	l.inList[line] = false
}

func (l *LRU) pushHead(line uint32) {
	l.prev[line] = l.nilIdx
	l.next[line] = l.head
	if l.head != l.nilIdx {
		l.prev[l.head] = line
	}
	l.head = line
	if l.tail == l.nilIdx {
		l.tail = line
	}
	l.inList[line] = true
}

// InitCacheLine registers a line that just started hosting data.
func (l *LRU) InitCacheLine(line model.CacheLine) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inList[line] {
		l.unlink(uint32(line))
	}
	l.pushHead(uint32(line))
}

// SetHot moves the line to the hot end of the recency list.
func (l *LRU) SetHot(line model.CacheLine) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inList[line] {
		l.unlink(uint32(line))
	}
	l.pushHead(uint32(line))
}

// RemoveCacheLine drops a line that returned to the freelist.
func (l *LRU) RemoveCacheLine(line model.CacheLine) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inList[line] {
		l.unlink(uint32(line))
	}
}

// candidates collects victim candidates cold-to-hot under the list lock.
func (l *LRU) candidates(req *core.Request) []model.CacheLine {
	cache := l.cache

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.CacheLine
	for line := l.tail; line != l.nilIdx; line = l.prev[line] {
		cl := model.CacheLine(line)

		if cache.Metadata.TestDirty(cl) {
			continue
		}
		if cache.LineLocks.IsLocked(cl) {
			continue
		}
		if req.PartEvict && cache.Metadata.GetPartitionID(cl) != req.PartID {
			continue
		}

		out = append(out, cl)
	}
	return out
}

// EvictDo reclaims count cache lines for the request. Runs under the global
// exclusive metadata lock, which shuts out new lock acquisitions; each
// victim is still write-locked across its invalidation so a line that is
// mid-I/O can never be reclaimed.
func (l *LRU) EvictDo(req *core.Request, count uint32) error {
	cache := l.cache
	freed := uint32(0)

	for _, line := range l.candidates(req) {
		if freed == count {
			break
		}

		if !cache.LineLocks.TryLockWr(line) {
			continue
		}

		if _, owned := cache.Metadata.GetCoreInfo(line); owned {
			cache.Metadata.StartCollisionSharedAccess(line)
			cache.SetCacheLineInvalidNoFlush(0, cache.LineEndSector(), line)
			cache.Metadata.EndCollisionSharedAccess(line)
			freed++
		}

		cache.LineLocks.UnlockWr(line)
	}

	if freed < count {
		return core.ErrNoVictims
	}
	return nil
}
