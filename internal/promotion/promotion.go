// Package promotion provides the admission policies deciding whether a miss
// is worth inserting into the cache.
package promotion

import (
	"sync"

	"github.com/hupe1980/blockcache/internal/core"
	"github.com/hupe1980/blockcache/model"
)

// Always admits every miss.
type Always struct{}

// ShouldPromote returns true unconditionally.
func (Always) ShouldPromote(req *core.Request) bool { return true }

// Purge is a no-op; the policy keeps no state.
func (Always) Purge(req *core.Request) {}

// NHit admits a core line only after it has missed a configured number of
// times, keeping one counter per recently missed core line. The counter map
// is bounded; at capacity new core lines are not tracked and stay
// unpromoted until space frees up.
type NHit struct {
	mu        sync.Mutex
	counters  map[model.CoreLineAddr]uint32
	threshold uint32
	maxTrack  int
}

// NewNHit creates the policy. threshold is the number of misses required
// before admission; maxTrack bounds the number of tracked core lines.
func NewNHit(threshold uint32, maxTrack int) *NHit {
	return &NHit{
		counters:  make(map[model.CoreLineAddr]uint32),
		threshold: threshold,
		maxTrack:  maxTrack,
	}
}

// ShouldPromote counts a miss for every unmapped core line of the request
// and admits the request once each of them reached the threshold.
func (p *NHit) ShouldPromote(req *core.Request) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	promote := true
	for i := uint32(0); i < req.CoreLineCount; i++ {
		if req.Map[i].Status == core.LookupHit {
			continue
		}

		addr := model.CoreLineAddr{CoreID: req.CoreID, CoreLine: req.CoreLineFirst + uint64(i)}
		n, tracked := p.counters[addr]
		if !tracked && len(p.counters) >= p.maxTrack {
			promote = false
			continue
		}

		n++
		p.counters[addr] = n
		if n < p.threshold {
			promote = false
		}
	}
	return promote
}

// Purge forgets the miss history of the request's core lines after they were
// inserted.
func (p *NHit) Purge(req *core.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for line := req.CoreLineFirst; line <= req.CoreLineLast; line++ {
		delete(p.counters, model.CoreLineAddr{CoreID: req.CoreID, CoreLine: line})
	}
}
