package engine

import (
	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// cleanEnd finishes a flush-before-reuse cycle. On error the request is
// failed and completed; on success the dirty counters are zeroed and the
// request re-enters its queue at the front.
func cleanEnd(req *core.Request, err error) {
	if err != nil {
		req.Error = err

		UnlockReq(req)
		req.Complete(req, err)
		req.Put()
		return
	}

	req.Info.DirtyAny = 0
	req.Info.DirtyAll = 0
	PushReqFront(req, true)
}

// Clean fires the cleaner for the request's dirty hits. The getter walks the
// map entries in order, yielding the cache line of every dirty hit.
func Clean(req *core.Request) {
	cache := req.Cache
	item := uint32(0)

	attribs := &core.CleanerAttribs{
		LockCacheline: false,

		Getter: func() (model.CacheLine, bool) {
			for ; item < req.CoreLineCount; item++ {
				entry := &req.Map[item]

				if entry.Status != core.LookupHit {
					continue
				}
				if !cache.Metadata.TestDirty(entry.CollIdx) {
					continue
				}

				line := entry.CollIdx
				item++
				return line, true
			}
			return 0, false
		},

		Count:    req.Info.DirtyAny,
		Complete: func(err error) { cleanEnd(req, err) },
		Queue:    req.Queue,
	}

	cache.Cleaner.Fire(attribs)
}
