package engine

import (
	"log/slog"

	"github.com/hupe1980/blockcache/internal/core"
)

// Error records an engine-level failure for the request. stopCache clears
// the cache's running state. The log record is rate-limited so error storms
// on a broken device cannot flood the log.
func Error(req *core.Request, stopCache bool, msg string) {
	cache := req.Cache

	if stopCache {
		cache.Stop()
	}

	if cache.ErrLogAllow() {
		cache.Logger.Error(msg,
			slog.Uint64("sector", req.BytePosition/uint64(cache.SectorSize())),
			slog.Uint64("bytes", uint64(req.ByteLength)),
			slog.Uint64("core", uint64(req.CoreID)),
			slog.String("rw", req.RW.String()))
	}
}

// UpdateBlockStats accounts the request's transferred volume.
func UpdateBlockStats(req *core.Request) {
	req.Cache.Stats.BlockUpdate(req.PartID, req.RW, uint64(req.ByteLength))
}

// UpdateRequestStats classifies the request as full/partial hit or miss.
func UpdateRequestStats(req *core.Request) {
	req.Cache.Stats.RequestUpdate(req.PartID, req.RW, req.Info.HitNo, req.CoreLineCount)
}
