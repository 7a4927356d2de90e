package engine

import (
	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// MapCacheLine assigns the given cache line to the request's entry idx:
// splices it into the collision chain under the line's shared-access guard,
// runs the cleaning policy's per-line init hook, and records the line in the
// entry. The caller holds the bucket write lock or the global exclusive
// metadata lock.
func MapCacheLine(req *core.Request, idx uint32, line model.CacheLine) {
	cache := req.Cache
	entry := &req.Map[idx]
	coreLine := req.CoreLineFirst + uint64(idx)

	cache.Metadata.StartCollisionSharedAccess(line)
	cache.Metadata.AddToCollision(req.CoreID, coreLine, entry.Hash, line)
	cache.Metadata.EndCollisionSharedAccess(line)

	if init := cache.CleaningInitializer(); init != nil {
		init.InitCacheBlock(line)
	}

	entry.CollIdx = line
}

// mapCacheLine allocates a free cache line for entry idx. A failed pop sets
// the request's mapping error; partition membership is not touched in that
// case.
func mapCacheLine(req *core.Request, idx uint32) {
	cache := req.Cache

	line, ok := cache.Freelist.Pop()
	if !ok {
		req.Info.MappingError = true
		return
	}

	cache.Parts.Add(req.PartID, line)
	cache.Metadata.SetPartitionID(line, req.PartID)

	MapCacheLine(req, idx, line)

	cache.Eviction.InitCacheLine(line)
	cache.Eviction.SetHot(line)
}

// mapHndlError unwinds a partially mapped request: every line inserted or
// remapped so far is restored to a miss and handed back through the
// no-flush invalidation path. Hits and misses are untouched.
func mapHndlError(cache *core.Cache, req *core.Request) {
	for i := uint32(0); i < req.CoreLineCount; i++ {
		entry := &req.Map[i]

		switch entry.Status {
		case core.LookupHit, core.LookupMiss:

		case core.LookupInserted, core.LookupRemapped:
			entry.Status = core.LookupMiss

			cache.Metadata.StartCollisionSharedAccess(entry.CollIdx)
			cache.SetCacheLineInvalidNoFlush(0, cache.LineEndSector(), entry.CollIdx)
			cache.Metadata.EndCollisionSharedAccess(entry.CollIdx)
		}
	}
}

// mapReq maps every unmapped core line of the request to a free cache line.
// Entries are re-resolved first: the bucket locks may have been dropped
// since the original traverse. Runs under the bucket write locks or the
// global exclusive metadata lock.
func mapReq(req *core.Request) {
	cache := req.Cache

	if req.UnmappedCount() == 0 {
		return
	}

	if req.UnmappedCount() > cache.Freelist.Count() {
		req.Info.MappingError = true
		return
	}

	req.ClearInfo()

	coreLine := req.CoreLineFirst
	for i := uint32(0); i < req.CoreLineCount; i, coreLine = i+1, coreLine+1 {
		entry := &req.Map[i]

		LookupMapEntry(cache, entry, req.CoreID, coreLine)

		if entry.Status != core.LookupHit {
			mapCacheLine(req, i)

			if req.Info.MappingError {
				mapHndlError(cache, req)
				break
			}

			entry.Status = core.LookupInserted
		}

		updateReqInfo(cache, req, i)
	}

	if !req.Info.MappingError {
		// The request made it into the cache; the promotion policy can
		// forget its miss history.
		cache.Promotion.Purge(req)
	}
}
