package metadata

import (
	"sync"

	"github.com/hupe1980/blockcache/internal/bitset"
	"github.com/hupe1980/blockcache/model"
)

const sharedAccessShards = 64

// Config configures a metadata store.
type Config struct {
	// Lines is the collision table size N. Valid cache-line indices are
	// [0, N); N itself is the "no line" sentinel.
	Lines uint32
	// Buckets is the hash table size. Defaults to Lines when zero.
	Buckets uint32
	// SectorsPerLine is the number of sectors per cache line.
	SectorsPerLine uint32
}

// slot carries the per-line metadata. Owner and chain fields are protected
// by the owning bucket's hash-bucket lock.
type slot struct {
	coreID   model.CoreID
	coreLine uint64
	partID   model.PartID
	next     uint32
	prev     uint32
	bucket   uint32
}

// Store is the metadata store.
type Store struct {
	lines   uint32
	buckets uint32
	sectors uint32

	slots []slot
	heads []uint32

	valid *bitset.BitSet
	dirty *bitset.BitSet

	shared [sharedAccessShards]sync.Mutex
}

// NewStore creates a metadata store with all lines unowned.
func NewStore(cfg Config) *Store {
	if cfg.Buckets == 0 {
		cfg.Buckets = cfg.Lines
	}

	s := &Store{
		lines:   cfg.Lines,
		buckets: cfg.Buckets,
		sectors: cfg.SectorsPerLine,
		slots:   make([]slot, cfg.Lines),
		heads:   make([]uint32, cfg.Buckets),
		valid:   bitset.New(uint64(cfg.Lines) * uint64(cfg.SectorsPerLine)),
		dirty:   bitset.New(uint64(cfg.Lines) * uint64(cfg.SectorsPerLine)),
	}

	for i := range s.slots {
		s.slots[i].coreID = model.InvalidCoreID
		s.slots[i].next = cfg.Lines
		s.slots[i].prev = cfg.Lines
	}
	for i := range s.heads {
		s.heads[i] = cfg.Lines
	}

	return s
}

// Entries returns the collision table size N, which doubles as the
// "no line" sentinel.
func (s *Store) Entries() uint32 { return s.lines }

// Buckets returns the hash table size.
func (s *Store) Buckets() uint32 { return s.buckets }

// SectorsPerLine returns the number of sectors per cache line.
func (s *Store) SectorsPerLine() uint32 { return s.sectors }

// LineEndSector returns the index of the last sector of a line.
func (s *Store) LineEndSector() uint32 { return s.sectors - 1 }

// HashFunc maps a core line address to its hash bucket.
func (s *Store) HashFunc(coreID model.CoreID, coreLine uint64) uint32 {
	// Fibonacci hashing over the combined address: the bucket is taken from
	// the high bits of the product, which depend on every input bit, the
	// core id included.
	h := (coreLine + uint64(coreID)<<48) * 0x9E3779B97F4A7C15
	return uint32(((h >> 32) * uint64(s.buckets)) >> 32)
}

// GetHash returns the head cache line of a bucket's collision chain, or the
// sentinel when the chain is empty.
func (s *Store) GetHash(bucket uint32) model.CacheLine {
	return model.CacheLine(s.heads[bucket])
}

// GetCollisionNext returns the next line in a collision chain, or the
// sentinel at the end.
func (s *Store) GetCollisionNext(line model.CacheLine) model.CacheLine {
	return model.CacheLine(s.slots[line].next)
}

// GetCoreInfo returns the core line address a cache line currently hosts.
// The second return is false for unowned lines.
func (s *Store) GetCoreInfo(line model.CacheLine) (model.CoreLineAddr, bool) {
	sl := &s.slots[line]
	if sl.coreID == model.InvalidCoreID {
		return model.CoreLineAddr{}, false
	}
	return model.CoreLineAddr{CoreID: sl.coreID, CoreLine: sl.coreLine}, true
}

// MapLg2Phy maps a logical cache-line index to its physical index on the
// cache device. The layout is flat, so the mapping is the identity; it stays
// behind this accessor because sequentiality detection is defined over
// physical indices.
func (s *Store) MapLg2Phy(line model.CacheLine) model.CacheLine {
	return line
}

// AddToCollision assigns (coreID, coreLine) to the given cache line and
// splices it at the head of the bucket's collision chain. The caller holds
// the bucket's write lock.
func (s *Store) AddToCollision(coreID model.CoreID, coreLine uint64, bucket uint32, line model.CacheLine) {
	sl := &s.slots[line]
	sl.coreID = coreID
	sl.coreLine = coreLine
	sl.bucket = bucket

	head := s.heads[bucket]
	sl.next = head
	sl.prev = s.lines
	if head != s.lines {
		s.slots[head].prev = uint32(line)
	}
	s.heads[bucket] = uint32(line)
}

// RemoveFromCollision unsplices a cache line from its collision chain and
// clears its owner. The caller holds the bucket's write lock or the global
// exclusive metadata lock.
func (s *Store) RemoveFromCollision(line model.CacheLine) {
	sl := &s.slots[line]
	if sl.coreID == model.InvalidCoreID {
		return
	}

	if sl.prev != s.lines {
		s.slots[sl.prev].next = sl.next
	} else {
		s.heads[sl.bucket] = sl.next
	}
	if sl.next != s.lines {
		s.slots[sl.next].prev = sl.prev
	}

	sl.coreID = model.InvalidCoreID
	sl.coreLine = 0
	sl.next = s.lines
	sl.prev = s.lines
}

// StartCollisionSharedAccess acquires the per-line shared guard used while a
// line's collision membership or sector bits are mutated.
func (s *Store) StartCollisionSharedAccess(line model.CacheLine) {
	s.shared[uint32(line)%sharedAccessShards].Lock()
}

// EndCollisionSharedAccess releases the per-line shared guard.
func (s *Store) EndCollisionSharedAccess(line model.CacheLine) {
	s.shared[uint32(line)%sharedAccessShards].Unlock()
}

// GetPartitionID returns the partition a cache line belongs to.
func (s *Store) GetPartitionID(line model.CacheLine) model.PartID {
	return s.slots[line].partID
}

// SetPartitionID records the partition a cache line belongs to.
func (s *Store) SetPartitionID(line model.CacheLine, part model.PartID) {
	s.slots[line].partID = part
}

func (s *Store) sectorBit(line model.CacheLine, sector uint32) uint64 {
	return uint64(line)*uint64(s.sectors) + uint64(sector)
}

// SetValidSectors marks sectors [start, end] of a line valid.
func (s *Store) SetValidSectors(line model.CacheLine, start, end uint32) {
	s.valid.SetRange(s.sectorBit(line, start), s.sectorBit(line, end))
}

// ClearValidSectors marks sectors [start, end] of a line invalid.
func (s *Store) ClearValidSectors(line model.CacheLine, start, end uint32) {
	s.valid.ClearRange(s.sectorBit(line, start), s.sectorBit(line, end))
}

// TestValidSectors returns true when every sector in [start, end] is valid.
func (s *Store) TestValidSectors(line model.CacheLine, start, end uint32) bool {
	return s.valid.TestRangeAll(s.sectorBit(line, start), s.sectorBit(line, end))
}

// TestAnyValid returns true when the line has at least one valid sector.
func (s *Store) TestAnyValid(line model.CacheLine) bool {
	return s.valid.TestRangeAny(s.sectorBit(line, 0), s.sectorBit(line, s.sectors-1))
}

// SetDirtySectors marks sectors [start, end] of a line dirty.
func (s *Store) SetDirtySectors(line model.CacheLine, start, end uint32) {
	s.dirty.SetRange(s.sectorBit(line, start), s.sectorBit(line, end))
}

// ClearDirtySectors clears the dirty bits of sectors [start, end].
func (s *Store) ClearDirtySectors(line model.CacheLine, start, end uint32) {
	s.dirty.ClearRange(s.sectorBit(line, start), s.sectorBit(line, end))
}

// TestDirty returns true when any sector of the line is dirty.
func (s *Store) TestDirty(line model.CacheLine) bool {
	return s.dirty.TestRangeAny(s.sectorBit(line, 0), s.sectorBit(line, s.sectors-1))
}

// TestDirtyAllSectors returns true when every sector in [start, end] is
// dirty.
func (s *Store) TestDirtyAllSectors(line model.CacheLine, start, end uint32) bool {
	return s.dirty.TestRangeAll(s.sectorBit(line, start), s.sectorBit(line, end))
}
