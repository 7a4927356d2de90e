package core

import "errors"

var (
	// ErrNoLock is returned when a request's cache-line locks could not be
	// acquired.
	ErrNoLock = errors.New("blockcache: cache line lock not acquired")

	// ErrInval marks a request whose mapping turned out inconsistent after a
	// suspension, detected by the refresh pass.
	ErrInval = errors.New("blockcache: inconsistent request mapping")

	// ErrNoVictims is returned by an eviction policy that could not reclaim
	// the requested number of cache lines.
	ErrNoVictims = errors.New("eviction: insufficient victims")

	// ErrCacheNotRunning is returned for requests against a stopped cache.
	ErrCacheNotRunning = errors.New("blockcache: cache is not running")
)
