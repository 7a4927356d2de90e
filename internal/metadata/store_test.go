package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache/model"
)

func newTestStore(lines uint32) *Store {
	return NewStore(Config{Lines: lines, SectorsPerLine: 8})
}

func TestStore_CollisionRoundTrip(t *testing.T) {
	s := newTestStore(16)
	sentinel := model.CacheLine(s.Entries())

	bucket := s.HashFunc(1, 42)
	require.Equal(t, sentinel, s.GetHash(bucket))

	s.AddToCollision(1, 42, bucket, 3)

	head := s.GetHash(bucket)
	require.Equal(t, model.CacheLine(3), head)

	addr, ok := s.GetCoreInfo(3)
	require.True(t, ok)
	assert.Equal(t, model.CoreID(1), addr.CoreID)
	assert.Equal(t, uint64(42), addr.CoreLine)

	// The round trip line -> core info -> bucket is consistent.
	assert.Equal(t, bucket, s.HashFunc(addr.CoreID, addr.CoreLine))
}

func TestStore_CollisionChainOrder(t *testing.T) {
	s := newTestStore(16)
	sentinel := model.CacheLine(s.Entries())

	// Force three lines into the same bucket.
	bucket := uint32(5)
	s.AddToCollision(0, 1, bucket, 10)
	s.AddToCollision(0, 2, bucket, 11)
	s.AddToCollision(0, 3, bucket, 12)

	// Head insertion: newest first.
	var chain []model.CacheLine
	for line := s.GetHash(bucket); line != sentinel; line = s.GetCollisionNext(line) {
		chain = append(chain, line)
	}
	assert.Equal(t, []model.CacheLine{12, 11, 10}, chain)
}

func TestStore_RemoveFromCollision(t *testing.T) {
	s := newTestStore(16)
	sentinel := model.CacheLine(s.Entries())
	bucket := uint32(7)

	s.AddToCollision(0, 1, bucket, 1)
	s.AddToCollision(0, 2, bucket, 2)
	s.AddToCollision(0, 3, bucket, 3)

	// Remove the middle element.
	s.RemoveFromCollision(2)
	_, ok := s.GetCoreInfo(2)
	assert.False(t, ok)

	var chain []model.CacheLine
	for line := s.GetHash(bucket); line != sentinel; line = s.GetCollisionNext(line) {
		chain = append(chain, line)
	}
	assert.Equal(t, []model.CacheLine{3, 1}, chain)

	// Remove the head.
	s.RemoveFromCollision(3)
	assert.Equal(t, model.CacheLine(1), s.GetHash(bucket))

	// Remove the last element.
	s.RemoveFromCollision(1)
	assert.Equal(t, sentinel, s.GetHash(bucket))

	// Removing an unowned line is a no-op.
	s.RemoveFromCollision(1)
}

func TestStore_SectorBitmaps(t *testing.T) {
	s := newTestStore(4)

	assert.False(t, s.TestAnyValid(2))

	s.SetValidSectors(2, 0, 7)
	assert.True(t, s.TestValidSectors(2, 0, 7))
	assert.True(t, s.TestAnyValid(2))

	// Neighboring lines are untouched.
	assert.False(t, s.TestAnyValid(1))
	assert.False(t, s.TestAnyValid(3))

	s.ClearValidSectors(2, 2, 3)
	assert.False(t, s.TestValidSectors(2, 0, 7))
	assert.True(t, s.TestValidSectors(2, 4, 7))
	assert.True(t, s.TestAnyValid(2))

	assert.False(t, s.TestDirty(2))
	s.SetDirtySectors(2, 4, 5)
	assert.True(t, s.TestDirty(2))
	assert.True(t, s.TestDirtyAllSectors(2, 4, 5))
	assert.False(t, s.TestDirtyAllSectors(2, 0, 7))

	s.ClearDirtySectors(2, 0, 7)
	assert.False(t, s.TestDirty(2))
}

func TestStore_PartitionID(t *testing.T) {
	s := newTestStore(4)

	assert.Equal(t, model.PartID(0), s.GetPartitionID(1))
	s.SetPartitionID(1, 3)
	assert.Equal(t, model.PartID(3), s.GetPartitionID(1))
}

func TestStore_HashFuncStableAndInRange(t *testing.T) {
	s := NewStore(Config{Lines: 128, Buckets: 64, SectorsPerLine: 8})

	for coreLine := uint64(0); coreLine < 1000; coreLine++ {
		h := s.HashFunc(2, coreLine)
		assert.Less(t, h, uint32(64))
		assert.Equal(t, h, s.HashFunc(2, coreLine))
	}

	// Different cores hash the same core line differently somewhere.
	diff := false
	for coreLine := uint64(0); coreLine < 64; coreLine++ {
		if s.HashFunc(0, coreLine) != s.HashFunc(1, coreLine) {
			diff = true
			break
		}
	}
	assert.True(t, diff)
}
