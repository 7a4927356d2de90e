package engine

import (
	"log/slog"

	"github.com/hupe1980/blockcache/internal/core"
)

// PushReqBack queues the request at the back of its I/O queue. Ownership
// transfers with the push; the caller must not dereference the request
// afterwards.
func PushReqBack(req *core.Request, allowSync bool) {
	if req.Queue == nil {
		panic("blockcache: request without queue")
	}

	if !req.Internal {
		req.Cache.TouchLastAccess()
	}

	req.Queue.PushBack(req, allowSync)
}

// PushReqFront queues the request at the front of its I/O queue, ahead of
// new work. Same ownership rule as PushReqBack.
func PushReqFront(req *core.Request, allowSync bool) {
	if req.Queue == nil {
		panic("blockcache: request without queue")
	}

	if !req.Internal {
		req.Cache.TouchLastAccess()
	}

	req.Queue.PushFront(req, allowSync)
}

// PushReqFrontIf installs the given I/O interface and queues the request at
// the front. Any prior request error is preserved; only the refresh install
// in OnResume clears it.
func PushReqFrontIf(req *core.Request, ioIf *core.IOIf, allowSync bool) {
	req.SetIOIf(ioIf)
	PushReqFront(req, allowSync)
}

// refresh re-validates the request's mapping under the bucket read locks.
// On success the saved I/O interface is restored and dispatched; on failure
// the request is completed with ErrInval and its line locks released.
func refresh(req *core.Request) {
	cache := req.Cache

	cache.MetaLock.LockRd(req.Hashes())
	consistent := Check(req)
	cache.MetaLock.UnlockRd(req.Hashes())

	if consistent {
		req.EndRefresh()
		req.Dispatch()
		return
	}

	cache.Logger.Warn("inconsistent request after resume",
		slog.Uint64("core_line_first", req.CoreLineFirst),
		slog.Uint64("core_line_last", req.CoreLineLast),
		slog.String("rw", req.RW.String()))

	req.Error = core.ErrInval

	req.Complete(req, core.ErrInval)

	UnlockReq(req)

	req.Put()
}

// refreshIOIf is the transient I/O interface installed across a suspension.
var refreshIOIf = &core.IOIf{
	Read:  refresh,
	Write: refresh,
}

// OnResume is the engine's resume callback: once the request's last line
// lock was granted the mapping may have shifted, so the current I/O
// interface is parked on the request and the refresh interface runs first.
func OnResume(req *core.Request) {
	req.BeginRefresh(refreshIOIf)

	// A request that waited out a lock starts its continuation clean; the
	// error slot is owned by the phases after refresh.
	req.Error = nil

	PushReqFront(req, false)
}
