package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache/model"
)

type recordingEviction struct {
	removed []model.CacheLine
}

func (r *recordingEviction) InitCacheLine(model.CacheLine)        {}
func (r *recordingEviction) SetHot(model.CacheLine)               {}
func (r *recordingEviction) RemoveCacheLine(line model.CacheLine) { r.removed = append(r.removed, line) }
func (r *recordingEviction) EvictDo(*Request, uint32) error       { return nil }

func TestCache_Geometry(t *testing.T) {
	cache := newTestCache(16)

	assert.Equal(t, uint32(4096), cache.CacheLineSize())
	assert.Equal(t, uint32(512), cache.SectorSize())
	assert.Equal(t, uint32(8), cache.SectorsPerLine())
	assert.Equal(t, uint32(7), cache.LineEndSector())
	assert.Equal(t, uint32(16), cache.Lines())
}

func TestCache_FallbackPTCounter(t *testing.T) {
	cache := newTestCache(16)
	// Inactive threshold: errors never trip pass-through.
	for i := 0; i < 10; i++ {
		cache.IncFallbackPTErrorCounter()
	}
	assert.False(t, cache.IsPassThrough())
	assert.Equal(t, int64(0), cache.FallbackPTErrorCounter())
}

func TestCache_FallbackPTThreshold(t *testing.T) {
	cache := NewCache(Config{
		CacheLineSize:            4096,
		SectorSize:               512,
		Lines:                    16,
		FallbackPTErrorThreshold: 3,
		Logger:                   newTestCache(1).Logger,
	})

	cache.IncFallbackPTErrorCounter()
	cache.IncFallbackPTErrorCounter()
	assert.False(t, cache.IsPassThrough())

	cache.IncFallbackPTErrorCounter()
	assert.True(t, cache.IsPassThrough())

	// Stays latched.
	cache.IncFallbackPTErrorCounter()
	assert.True(t, cache.IsPassThrough())
	assert.Equal(t, int64(4), cache.FallbackPTErrorCounter())
}

func TestCache_InvalidateNoFlushPurgesFullyInvalidLine(t *testing.T) {
	cache := newTestCache(16)
	rec := &recordingEviction{}
	cache.Eviction = rec

	line, ok := cache.Freelist.Pop()
	require.True(t, ok)

	bucket := cache.Metadata.HashFunc(0, 42)
	cache.Metadata.AddToCollision(0, 42, bucket, line)
	cache.Metadata.SetPartitionID(line, 0)
	cache.Parts.Add(0, line)
	cache.Metadata.SetValidSectors(line, 0, 7)
	cache.Metadata.SetDirtySectors(line, 0, 7)

	// Partial invalidation keeps the mapping.
	cache.SetCacheLineInvalidNoFlush(0, 3, line)
	_, owned := cache.Metadata.GetCoreInfo(line)
	assert.True(t, owned)
	assert.False(t, cache.Freelist.Contains(line))

	// Clearing the rest purges the line entirely.
	cache.SetCacheLineInvalidNoFlush(4, 7, line)
	_, owned = cache.Metadata.GetCoreInfo(line)
	assert.False(t, owned)
	assert.True(t, cache.Freelist.Contains(line))
	assert.False(t, cache.Parts.Contains(0, line))
	assert.False(t, cache.Metadata.TestDirty(line))
	assert.Equal(t, []model.CacheLine{line}, rec.removed)

	// Invalidating an unowned line is a no-op.
	cache.SetCacheLineInvalidNoFlush(0, 7, line)
	assert.True(t, cache.Freelist.Contains(line))
}

func TestStats_Classification(t *testing.T) {
	s := NewStats()

	s.RequestUpdate(0, model.RWRead, 4, 4)
	s.RequestUpdate(0, model.RWRead, 1, 4)
	s.RequestUpdate(0, model.RWRead, 0, 4)
	s.BlockUpdate(0, model.RWWrite, 8192)

	snap := s.Snapshot(0)
	assert.Equal(t, uint64(1), snap.Read.FullHit)
	assert.Equal(t, uint64(1), snap.Read.PartialHit)
	assert.Equal(t, uint64(1), snap.Read.FullMiss)
	assert.Equal(t, uint64(8192), snap.Write.Bytes)
}

func TestCache_LastAccess(t *testing.T) {
	cache := newTestCache(16)

	require.Equal(t, int64(0), cache.LastAccessMs())
	cache.TouchLastAccess()
	assert.Greater(t, cache.LastAccessMs(), int64(0))
}
