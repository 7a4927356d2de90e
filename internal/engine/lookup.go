package engine

import (
	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// LookupMapEntry resolves one core line against the collision table. On a
// hit the entry records the hosting cache line; on a miss the entry keeps
// the sentinel index. The bucket is recorded either way so a later insertion
// knows where to splice. The caller holds the bucket's lock.
func LookupMapEntry(cache *core.Cache, entry *core.MapEntry, coreID model.CoreID, coreLine uint64) {
	meta := cache.Metadata
	hash := meta.HashFunc(coreID, coreLine)

	// Assume a miss; the hash points at the right bucket regardless.
	entry.Hash = hash
	entry.Status = core.LookupMiss
	entry.CollIdx = model.CacheLine(meta.Entries())
	entry.CoreID = coreID
	entry.CoreLine = coreLine

	line := meta.GetHash(hash)
	for uint32(line) != meta.Entries() {
		if addr, ok := meta.GetCoreInfo(line); ok &&
			addr.CoreID == coreID && addr.CoreLine == coreLine {
			entry.CollIdx = line
			entry.Status = core.LookupHit
			break
		}
		line = meta.GetCollisionNext(line)
	}
}

// checkMapEntry re-validates a single entry's mapping. Misses are trivially
// consistent; a mapped entry must still point at a line hosting the same
// core line.
func checkMapEntry(cache *core.Cache, entry *core.MapEntry) bool {
	if entry.Status == core.LookupMiss {
		return true
	}

	if uint32(entry.CollIdx) >= cache.Metadata.Entries() {
		panic("blockcache: mapped entry with sentinel collision index")
	}

	addr, ok := cache.Metadata.GetCoreInfo(entry.CollIdx)
	return ok && addr.CoreID == entry.CoreID && addr.CoreLine == entry.CoreLine
}

// clinesPhysCont returns true when the core lines at index idx and idx+1 of
// the request map to physically contiguous cache lines.
func clinesPhysCont(req *core.Request, idx uint32) bool {
	entry1 := &req.Map[idx]
	entry2 := &req.Map[idx+1]

	if entry1.Status == core.LookupMiss || entry2.Status == core.LookupMiss {
		return false
	}

	phys1 := req.Cache.Metadata.MapLg2Phy(entry1.CollIdx)
	phys2 := req.Cache.Metadata.MapLg2Phy(entry2.CollIdx)

	return phys1 < phys2 && phys1+1 == phys2
}

// updateReqInfo folds one entry's state into the request's aggregate info.
func updateReqInfo(cache *core.Cache, req *core.Request, idx uint32) {
	entry := &req.Map[idx]
	startSector := req.LineStartSector(idx)
	endSector := req.LineEndSector(idx)

	switch entry.Status {
	case core.LookupHit:
		if cache.Metadata.TestValidSectors(entry.CollIdx, startSector, endSector) {
			req.Info.HitNo++
		} else {
			req.Info.InvalidNo++
		}

		if cache.Metadata.TestDirty(entry.CollIdx) {
			req.Info.DirtyAny++

			if cache.Metadata.TestDirtyAllSectors(entry.CollIdx, startSector, endSector) {
				req.Info.DirtyAll++
			}
		}

		if req.PartID != cache.Metadata.GetPartitionID(entry.CollIdx) {
			// The line must move into the request's partition after commit.
			entry.RePart = true
			req.Info.RePartNo++
		}

	case core.LookupInserted:
		req.Info.InsertNo++

	case core.LookupMiss:

	case core.LookupRemapped:
		// Remapped entries are accounted via PatchReqInfo.
		panic("blockcache: remapped entry in updateReqInfo")
	}

	if idx > 0 && clinesPhysCont(req, idx-1) {
		req.Info.SeqNo++
	}
}

// PatchReqInfo accounts a remapped entry: one insertion plus the
// sequentiality contributions towards both neighbors.
func PatchReqInfo(req *core.Request, idx uint32) {
	entry := &req.Map[idx]

	if entry.Status != core.LookupRemapped {
		panic("blockcache: PatchReqInfo on non-remapped entry")
	}

	req.Info.InsertNo++

	if idx > 0 && clinesPhysCont(req, idx-1) {
		req.Info.SeqNo++
	}
	if idx+1 < req.CoreLineCount && clinesPhysCont(req, idx) {
		req.Info.SeqNo++
	}
}

// Traverse resolves every core line of the request and rebuilds the
// aggregate info. Hits are reported hot to the eviction policy. The caller
// holds the request's bucket locks or the global exclusive metadata lock.
func Traverse(req *core.Request) {
	cache := req.Cache

	req.ClearInfo()

	coreLine := req.CoreLineFirst
	for i := uint32(0); i < req.CoreLineCount; i, coreLine = i+1, coreLine+1 {
		entry := &req.Map[i]

		LookupMapEntry(cache, entry, req.CoreID, coreLine)

		if entry.Status != core.LookupHit {
			continue
		}

		cache.Eviction.SetHot(entry.CollIdx)

		updateReqInfo(cache, req, i)
	}
}

// Check re-validates the request's mapping after a suspension, marking
// entries whose metadata changed underneath. It returns false when at least
// one entry went inconsistent. The caller holds the bucket read locks.
func Check(req *core.Request) bool {
	cache := req.Cache
	consistent := true

	req.ClearInfo()

	for i := uint32(0); i < req.CoreLineCount; i++ {
		entry := &req.Map[i]

		if entry.Status == core.LookupMiss {
			continue
		}

		if !checkMapEntry(cache, entry) {
			entry.Invalid = true
			consistent = false
			continue
		}

		entry.Invalid = false
		updateReqInfo(cache, req, i)
	}

	return consistent
}
