package core

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/blockcache/internal/concurrency"
	"github.com/hupe1980/blockcache/model"
)

// LookupStatus is the mapping state of one map entry.
type LookupStatus uint8

const (
	// LookupMiss means no cache line hosts the core line.
	LookupMiss LookupStatus = iota
	// LookupHit means the core line was found in the collision table.
	LookupHit
	// LookupInserted means a free cache line was assigned during mapping.
	LookupInserted
	// LookupRemapped means an evicted cache line was reassigned directly.
	LookupRemapped
)

// String returns the status name.
func (s LookupStatus) String() string {
	switch s {
	case LookupMiss:
		return "miss"
	case LookupHit:
		return "hit"
	case LookupInserted:
		return "inserted"
	case LookupRemapped:
		return "remapped"
	default:
		return "unknown"
	}
}

// MapEntry is the per-core-line mapping state of one request. CollIdx equal
// to the collision table size N means "not assigned".
type MapEntry struct {
	CoreID   model.CoreID
	CoreLine uint64
	Hash     uint32
	CollIdx  model.CacheLine
	Status   LookupStatus
	Invalid  bool
	RePart   bool
}

// Info aggregates per-request mapping counters and flags. Cleared before
// every traversal.
type Info struct {
	HitNo     uint32
	InvalidNo uint32
	InsertNo  uint32
	RePartNo  uint32
	SeqNo     uint32
	DirtyAny  uint32
	DirtyAll  uint32

	MappingError bool
}

// Request is one multi-line I/O request moving through the preparation
// pipeline.
type Request struct {
	Cache  *Cache
	CoreID model.CoreID
	RW     model.RW
	PartID model.PartID

	BytePosition uint64
	ByteLength   uint32

	CoreLineFirst uint64
	CoreLineLast  uint64
	CoreLineCount uint32

	Map  []MapEntry
	Info Info

	// Internal requests (metadata flushes, cleaner I/O) do not update the
	// cache's last-access time.
	Internal bool

	// PartEvict restricts eviction to the request's own partition. Unlike
	// the Info counters it survives the re-traversal inside mapping.
	PartEvict bool

	Error error

	Queue     *Queue
	Complete  func(req *Request, err error)
	EngineCBs EngineCallbacks

	// LockToken carries the request's per-line locks from acquisition in
	// the preparation pipeline to release after the I/O phase.
	LockToken *concurrency.Token

	ioIf      *IOIf
	savedIOIf *IOIf

	hashes []uint32

	refs atomic.Int32
}

var reqPool = sync.Pool{
	New: func() any { return &Request{} },
}

// NewRequest allocates a request covering [bytePosition, bytePosition+
// byteLength) of the given core. The caller owns one reference.
func NewRequest(cache *Cache, coreID model.CoreID, rw model.RW, partID model.PartID, bytePosition uint64, byteLength uint32) *Request {
	lineSize := uint64(cache.CacheLineSize())
	first := bytePosition / lineSize
	last := (bytePosition + uint64(byteLength) - 1) / lineSize
	count := uint32(last - first + 1)

	req := reqPool.Get().(*Request)
	*req = Request{
		Cache:         cache,
		CoreID:        coreID,
		RW:            rw,
		PartID:        partID,
		BytePosition:  bytePosition,
		ByteLength:    byteLength,
		CoreLineFirst: first,
		CoreLineLast:  last,
		CoreLineCount: count,
		Map:           req.Map,
		hashes:        req.hashes,
	}

	if cap(req.Map) < int(count) {
		req.Map = make([]MapEntry, count)
	} else {
		req.Map = req.Map[:count]
	}
	for i := range req.Map {
		req.Map[i] = MapEntry{}
	}

	req.refs.Store(1)
	return req
}

// Get takes an additional reference on the request.
func (r *Request) Get() { r.refs.Add(1) }

// Put drops one reference; the last Put recycles the request. The caller
// must not touch the request afterwards.
func (r *Request) Put() {
	if r.refs.Add(-1) == 0 {
		r.hashes = r.hashes[:0]
		reqPool.Put(r)
	}
}

// ClearInfo resets the aggregate mapping counters and flags.
func (r *Request) ClearInfo() {
	r.Info = Info{}
}

// Hash computes the sorted, deduplicated hash-bucket set of the request's
// core lines, used by the concurrency manager for bucket locking.
func (r *Request) Hash() {
	r.hashes = r.hashes[:0]
	for line := r.CoreLineFirst; line <= r.CoreLineLast; line++ {
		r.hashes = append(r.hashes, r.Cache.Metadata.HashFunc(r.CoreID, line))
	}

	sort.Slice(r.hashes, func(i, j int) bool { return r.hashes[i] < r.hashes[j] })

	out := r.hashes[:0]
	for i, h := range r.hashes {
		if i == 0 || h != r.hashes[i-1] {
			out = append(out, h)
		}
	}
	r.hashes = out
}

// Hashes returns the bucket set computed by Hash.
func (r *Request) Hashes() []uint32 { return r.hashes }

// MappedCount returns the number of entries currently backed by a cache
// line.
func (r *Request) MappedCount() uint32 {
	return r.Info.HitNo + r.Info.InvalidNo
}

// UnmappedCount returns the number of entries still lacking a cache line.
func (r *Request) UnmappedCount() uint32 {
	return r.CoreLineCount - r.MappedCount()
}

// IsMapped reports whether every core line of the request has a cache line.
func (r *Request) IsMapped() bool { return r.UnmappedCount() == 0 }

// IsSequential reports whether the request's mapped cache lines are
// physically contiguous.
func (r *Request) IsSequential() bool {
	return r.Info.SeqNo == r.CoreLineCount-1
}

// LineStartSector returns the first sector of entry idx covered by the
// request. Only the first entry may start past sector zero.
func (r *Request) LineStartSector(idx uint32) uint32 {
	if idx == 0 {
		return uint32(r.BytePosition % uint64(r.Cache.CacheLineSize()) / uint64(r.Cache.SectorSize()))
	}
	return 0
}

// LineEndSector returns the last sector of entry idx covered by the
// request. Only the last entry may end before the line's end sector.
func (r *Request) LineEndSector(idx uint32) uint32 {
	if idx == r.CoreLineCount-1 {
		lastByte := r.BytePosition + uint64(r.ByteLength) - 1
		return uint32(lastByte % uint64(r.Cache.CacheLineSize()) / uint64(r.Cache.SectorSize()))
	}
	return r.Cache.LineEndSector()
}

// SetIOIf installs the request's I/O interface.
func (r *Request) SetIOIf(ioIf *IOIf) { r.ioIf = ioIf }

// IOIf returns the request's current I/O interface.
func (r *Request) IOIf() *IOIf { return r.ioIf }

// BeginRefresh saves the current I/O interface and installs the refresh
// interface. Nested refreshes are a programming error.
func (r *Request) BeginRefresh(refresh *IOIf) {
	if r.savedIOIf != nil {
		panic("blockcache: nested refresh")
	}
	r.savedIOIf = r.ioIf
	r.ioIf = refresh
}

// EndRefresh restores the I/O interface saved by BeginRefresh.
func (r *Request) EndRefresh() {
	r.ioIf = r.savedIOIf
	r.savedIOIf = nil
}

// Dispatch invokes the current I/O interface for the request's direction.
func (r *Request) Dispatch() {
	if r.RW == model.RWWrite {
		r.ioIf.Write(r)
	} else {
		r.ioIf.Read(r)
	}
}
