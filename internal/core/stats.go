package core

import (
	"sync/atomic"

	"github.com/hupe1980/blockcache/model"
)

// dirStats counts one direction of traffic for a partition.
type dirStats struct {
	fullHit    atomic.Uint64
	partialHit atomic.Uint64
	fullMiss   atomic.Uint64
	bytes      atomic.Uint64
}

type partStats struct {
	read  dirStats
	write dirStats
}

// Stats aggregates per-partition request and volume counters.
type Stats struct {
	parts [model.MaxParts]partStats
}

// NewStats creates zeroed statistics.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) dir(part model.PartID, rw model.RW) *dirStats {
	p := &s.parts[part]
	if rw == model.RWWrite {
		return &p.write
	}
	return &p.read
}

// BlockUpdate accounts the transferred volume of a request.
func (s *Stats) BlockUpdate(part model.PartID, rw model.RW, bytes uint64) {
	s.dir(part, rw).bytes.Add(bytes)
}

// RequestUpdate classifies a request as full hit, partial hit or full miss
// based on its hit count.
func (s *Stats) RequestUpdate(part model.PartID, rw model.RW, hitNo, coreLineCount uint32) {
	d := s.dir(part, rw)
	switch {
	case hitNo == coreLineCount:
		d.fullHit.Add(1)
	case hitNo > 0:
		d.partialHit.Add(1)
	default:
		d.fullMiss.Add(1)
	}
}

// DirSnapshot is a point-in-time copy of one direction's counters.
type DirSnapshot struct {
	FullHit    uint64 `json:"full_hit"`
	PartialHit uint64 `json:"partial_hit"`
	FullMiss   uint64 `json:"full_miss"`
	Bytes      uint64 `json:"bytes"`
}

// PartSnapshot is a point-in-time copy of one partition's counters.
type PartSnapshot struct {
	Read  DirSnapshot `json:"read"`
	Write DirSnapshot `json:"write"`
}

// Snapshot copies the counters of one partition.
func (s *Stats) Snapshot(part model.PartID) PartSnapshot {
	p := &s.parts[part]
	return PartSnapshot{
		Read: DirSnapshot{
			FullHit:    p.read.fullHit.Load(),
			PartialHit: p.read.partialHit.Load(),
			FullMiss:   p.read.fullMiss.Load(),
			Bytes:      p.read.bytes.Load(),
		},
		Write: DirSnapshot{
			FullHit:    p.write.fullHit.Load(),
			PartialHit: p.write.partialHit.Load(),
			FullMiss:   p.write.fullMiss.Load(),
			Bytes:      p.write.bytes.Load(),
		},
	}
}
