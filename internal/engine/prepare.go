package engine

import (
	"github.com/hupe1980/blockcache/internal/concurrency"
	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// lockClines acquires the request's per-line locks in the mode chosen by the
// engine variant. On Pending the variant's Resume callback fires once the
// last lock is granted.
func lockClines(req *core.Request) (concurrency.Status, error) {
	lockType := req.EngineCBs.GetLockType(req)
	if lockType == concurrency.LockNone {
		return concurrency.Acquired, nil
	}

	lines := make([]model.CacheLine, req.CoreLineCount)
	for i := range req.Map {
		lines[i] = req.Map[i].CollIdx
	}

	tok := req.Cache.LineLocks.NewToken(lines, lockType)
	req.LockToken = tok

	status := req.Cache.LineLocks.Lock(tok, func() {
		req.EngineCBs.Resume(req)
	})
	return status, nil
}

// UnlockReq releases the request's per-line locks, if any are held.
func UnlockReq(req *core.Request) {
	if req.LockToken == nil {
		return
	}
	req.Cache.LineLocks.Unlock(req.LockToken)
	req.LockToken = nil
}

// prepareClinesEvict is the eviction arm of the miss path. It runs under the
// global exclusive metadata lock: traversal is repeated to pick up the
// latest metadata state, the eviction policy reclaims the shortfall, and
// mapping is retried.
func prepareClinesEvict(req *core.Request) (concurrency.Status, error) {
	cache := req.Cache

	cache.MetaLock.StartExclusive()
	defer cache.MetaLock.EndExclusive()

	Traverse(req)

	req.PartEvict = !cache.Parts.HasSpace(req.PartID, req.UnmappedCount())

	if err := cache.Eviction.EvictDo(req, req.UnmappedCount()); err != nil {
		req.Info.MappingError = true
		return 0, core.ErrNoLock
	}

	mapReq(req)
	if req.Info.MappingError {
		return 0, core.ErrNoLock
	}

	status, err := lockClines(req)
	if err != nil {
		req.Info.MappingError = true
		return 0, core.ErrNoLock
	}
	return status, nil
}

// prepareClinesMiss maps the request's missing core lines. Entered with the
// bucket read locks held; every arm releases them.
func prepareClinesMiss(req *core.Request) (concurrency.Status, error) {
	cache := req.Cache

	// Requests to disabled partitions go in pass-through.
	if !cache.Parts.IsEnabled(req.PartID) {
		req.Info.MappingError = true
		cache.MetaLock.UnlockRd(req.Hashes())
		return 0, core.ErrNoLock
	}

	if !cache.Parts.HasSpace(req.PartID, req.UnmappedCount()) {
		cache.MetaLock.UnlockRd(req.Hashes())
		return prepareClinesEvict(req)
	}

	// Mapping requires (at least) the bucket write locks.
	cache.MetaLock.UpgradeRdWr(req.Hashes())

	mapReq(req)

	if !req.Info.MappingError {
		status, err := lockClines(req)
		if err != nil {
			// Mapping succeeded but the line locks failed. Don't evict;
			// report the error to the caller.
			req.Info.MappingError = true
			cache.MetaLock.UnlockWr(req.Hashes())
			return 0, core.ErrNoLock
		}
		cache.MetaLock.UnlockWr(req.Hashes())
		return status, nil
	}

	cache.MetaLock.UnlockWr(req.Hashes())

	return prepareClinesEvict(req)
}

// PrepareClines is the pipeline entry point for one request: traverse under
// the bucket read locks, then either lock the lines of a fully mapped
// request, or run the miss path (promotion gate, mapping, eviction).
//
// On success the returned status tells whether the line locks are already
// held (Acquired) or the request parked (Pending; the variant's Resume fires
// later). A non-nil error means the request could not be mapped or locked;
// the request's MappingError flag is set and the caller converts it to
// pass-through.
func PrepareClines(req *core.Request) (concurrency.Status, error) {
	cache := req.Cache

	// Hashes feed the bucket locking below; computing them first keeps the
	// traversal stable against concurrent remaps of the same core lines.
	req.Hash()

	cache.MetaLock.LockRd(req.Hashes())

	Traverse(req)

	if req.IsMapped() {
		status, err := lockClines(req)
		cache.MetaLock.UnlockRd(req.Hashes())
		return status, err
	}

	if !cache.Promotion.ShouldPromote(req) {
		req.Info.MappingError = true
		cache.MetaLock.UnlockRd(req.Hashes())
		return 0, core.ErrNoLock
	}

	return prepareClinesMiss(req)
}
