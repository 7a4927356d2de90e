// Package blockcache implements the core of a block-level caching engine:
// it maps ranges of core-device logical blocks onto fixed-size cache lines
// of a faster cache device, tracking validity, dirtiness, partition
// membership and recency, and prepares multi-line I/O requests under a
// multi-tier locking discipline.
//
// The package covers the request preparation pipeline — lookup traversal,
// mapping from the freelist, eviction-driven reclaim, flush-before-reuse of
// dirty lines, and per-line lock acquisition with suspend/resume. The raw
// block I/O path, metadata persistence and telemetry export are the
// caller's collaborators, plugged in through the interfaces re-exported
// here.
//
//	cache, err := blockcache.New(
//	    blockcache.WithLines(1024),
//	    blockcache.WithCacheLineSize(4096),
//	)
//	if err != nil { ... }
//
//	q := blockcache.NewQueue(nil)
//	req := cache.NewRequest(0, blockcache.RWRead, 0, 0, 4096, q)
//	// Wire req.EngineCBs, req.Complete and the I/O interface, then:
//	status, err := cache.PrepareClines(req)
package blockcache
