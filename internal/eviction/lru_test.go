package eviction

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/internal/partition"
	"github.com/hupe1980/blockcache/model"
)

func newTestCache(lines uint32) (*core.Cache, *LRU) {
	cc := core.NewCache(core.Config{
		CacheLineSize: 4096,
		SectorSize:    512,
		Lines:         lines,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	lru := NewLRU(cc)
	cc.Eviction = lru
	return cc, lru
}

// own assigns a core line to a cache line the way the mapping path does.
func own(cache *core.Cache, lru *LRU, coreLine uint64, line model.CacheLine) {
	popped, ok := cache.Freelist.Pop()
	if !ok || popped != line {
		panic("test setup: unexpected freelist state")
	}
	cache.Metadata.AddToCollision(0, coreLine, cache.Metadata.HashFunc(0, coreLine), line)
	cache.Metadata.SetPartitionID(line, 0)
	cache.Parts.Add(0, line)
	cache.Metadata.SetValidSectors(line, 0, cache.LineEndSector())
	lru.InitCacheLine(line)
	lru.SetHot(line)
}

func newReq(cache *core.Cache, count uint32) *core.Request {
	return core.NewRequest(cache, 0, model.RWRead, 0, 100*4096, count*4096)
}

func TestLRU_EvictsColdestFirst(t *testing.T) {
	cache, lru := newTestCache(4)

	own(cache, lru, 0, 0)
	own(cache, lru, 1, 1)
	own(cache, lru, 2, 2)

	// Touch line 0: line 1 becomes the coldest.
	lru.SetHot(0)

	req := newReq(cache, 1)
	require.NoError(t, lru.EvictDo(req, 1))

	_, owned := cache.Metadata.GetCoreInfo(1)
	assert.False(t, owned, "coldest line not evicted")
	assert.True(t, cache.Freelist.Contains(1))

	_, owned = cache.Metadata.GetCoreInfo(0)
	assert.True(t, owned)
	_, owned = cache.Metadata.GetCoreInfo(2)
	assert.True(t, owned)
}

func TestLRU_SkipsDirtyLines(t *testing.T) {
	cache, lru := newTestCache(4)

	own(cache, lru, 0, 0)
	own(cache, lru, 1, 1)
	cache.Metadata.SetDirtySectors(0, 0, cache.LineEndSector())

	req := newReq(cache, 1)
	require.NoError(t, lru.EvictDo(req, 1))

	// The dirty line survives; the clean one goes.
	_, owned := cache.Metadata.GetCoreInfo(0)
	assert.True(t, owned)
	_, owned = cache.Metadata.GetCoreInfo(1)
	assert.False(t, owned)
}

func TestLRU_SkipsLockedLines(t *testing.T) {
	cache, lru := newTestCache(4)

	own(cache, lru, 0, 0)
	own(cache, lru, 1, 1)
	require.True(t, cache.LineLocks.TryLockWr(0))
	defer cache.LineLocks.UnlockWr(0)

	req := newReq(cache, 1)
	require.NoError(t, lru.EvictDo(req, 1))

	_, owned := cache.Metadata.GetCoreInfo(0)
	assert.True(t, owned, "locked line must not be evicted")
	_, owned = cache.Metadata.GetCoreInfo(1)
	assert.False(t, owned)
}

func TestLRU_InsufficientVictims(t *testing.T) {
	cache, lru := newTestCache(4)

	own(cache, lru, 0, 0)
	cache.Metadata.SetDirtySectors(0, 0, cache.LineEndSector())

	req := newReq(cache, 1)
	assert.ErrorIs(t, lru.EvictDo(req, 1), core.ErrNoVictims)
}

func TestLRU_PartEvictRestrictsPartition(t *testing.T) {
	cc := core.NewCache(core.Config{
		CacheLineSize: 4096,
		SectorSize:    512,
		Lines:         4,
		Partitions: []partition.Config{
			{Name: "a", Enabled: true},
			{Name: "b", Enabled: true},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	lru := NewLRU(cc)
	cc.Eviction = lru

	// Line 0 in partition 1, line 1 in partition 0; line 0 is colder.
	for i, part := range []model.PartID{1, 0} {
		line := model.CacheLine(i)
		popped, ok := cc.Freelist.Pop()
		require.True(t, ok)
		require.Equal(t, line, popped)
		cc.Metadata.AddToCollision(0, uint64(i), cc.Metadata.HashFunc(0, uint64(i)), line)
		cc.Metadata.SetPartitionID(line, part)
		cc.Parts.Add(part, line)
		cc.Metadata.SetValidSectors(line, 0, cc.LineEndSector())
		lru.InitCacheLine(line)
	}

	req := core.NewRequest(cc, 0, model.RWRead, 0, 100*4096, 4096)
	req.PartEvict = true

	require.NoError(t, lru.EvictDo(req, 1))

	// Only the partition-0 line may be reclaimed, even though the
	// partition-1 line is colder.
	_, owned := cc.Metadata.GetCoreInfo(0)
	assert.True(t, owned)
	_, owned = cc.Metadata.GetCoreInfo(1)
	assert.False(t, owned)
}

func TestLRU_RemoveCacheLine(t *testing.T) {
	cache, lru := newTestCache(4)

	own(cache, lru, 0, 0)
	own(cache, lru, 1, 1)

	lru.RemoveCacheLine(1)

	// Removed line is no longer an eviction candidate; line 0 goes instead.
	req := newReq(cache, 1)
	require.NoError(t, lru.EvictDo(req, 1))
	_, owned := cache.Metadata.GetCoreInfo(0)
	assert.False(t, owned)
}
