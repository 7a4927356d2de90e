package concurrency

import (
	"sort"
	"sync"

	"github.com/hupe1980/blockcache/model"
)

// LockType selects the kind of per-line lock a request needs.
type LockType uint8

const (
	// LockNone requests no line locks.
	LockNone LockType = iota
	// LockRead requests shared line locks.
	LockRead
	// LockWrite requests exclusive line locks.
	LockWrite
)

// Status is the outcome of an asynchronous lock attempt.
type Status int

const (
	// Acquired means all line locks are held on return.
	Acquired Status = iota
	// Pending means the request parked on a contended line; the callback
	// fires once the last lock is granted.
	Pending
)

const lineLockShards = 64

type waiter struct {
	tok   *Token
	index int
}

type lineState struct {
	readers uint32
	writer  bool
	waiters []waiter
}

// LineLocks is the per-cache-line lock table.
//
// Acquisition is incremental and ordered: a token takes its lines in
// ascending index order, holds the prefix it has, and parks on the first
// unavailable line. Every parked token waits only for lines above everything
// it holds, so circular waits cannot form.
type LineLocks struct {
	shards [lineLockShards]sync.Mutex
	lines  []lineState
}

// NewLineLocks creates a lock table for the given number of cache lines.
func NewLineLocks(lines uint32) *LineLocks {
	return &LineLocks{
		lines: make([]lineState, lines),
	}
}

func (l *LineLocks) shardFor(line model.CacheLine) *sync.Mutex {
	return &l.shards[uint32(line)%lineLockShards]
}

// Token tracks one request's set of line locks. A token is good for one
// Lock / Unlock cycle and must not be reused afterwards.
type Token struct {
	owner *LineLocks
	lines []model.CacheLine
	write bool
	held  []bool
	next  int
	cb    func()
}

// NewToken prepares a token covering the given cache lines. The lines are
// copied and sorted into the table's acquisition order.
func (l *LineLocks) NewToken(lines []model.CacheLine, lt LockType) *Token {
	sorted := make([]model.CacheLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &Token{
		owner: l,
		lines: sorted,
		write: lt == LockWrite,
		held:  make([]bool, len(sorted)),
	}
}

// tryAcquire attempts to take one line lock. Parked waiters have priority
// over new arrivals. Caller holds the shard mutex.
func (st *lineState) tryAcquire(write bool) bool {
	if st.writer || len(st.waiters) > 0 {
		return false
	}
	if write {
		if st.readers > 0 {
			return false
		}
		st.writer = true
		return true
	}
	st.readers++
	return true
}

// advance takes the token's remaining lines in order. It stops and parks at
// the first unavailable line.
func (tok *Token) advance() Status {
	l := tok.owner

	for tok.next < len(tok.lines) {
		line := tok.lines[tok.next]
		mu := l.shardFor(line)

		mu.Lock()
		st := &l.lines[line]
		if st.tryAcquire(tok.write) {
			tok.held[tok.next] = true
			tok.next++
			mu.Unlock()
			continue
		}
		st.waiters = append(st.waiters, waiter{tok: tok, index: tok.next})
		mu.Unlock()
		return Pending
	}

	return Acquired
}

// Lock attempts to acquire all of the token's line locks. When every lock is
// available the call returns Acquired and cb is never invoked. Otherwise the
// token parks and Pending is returned; cb fires exactly once, from the
// goroutine that grants the last lock.
func (l *LineLocks) Lock(tok *Token, cb func()) Status {
	tok.cb = cb
	return tok.advance()
}

// Unlock releases every line lock the token holds and grants parked waiters.
// Completion callbacks of tokens that finished acquiring here run
// synchronously on this goroutine, after the shard locks are dropped.
func (l *LineLocks) Unlock(tok *Token) {
	var granted []*Token

	for i := len(tok.lines) - 1; i >= 0; i-- {
		if !tok.held[i] {
			continue
		}
		tok.held[i] = false

		line := tok.lines[i]
		mu := l.shardFor(line)
		mu.Lock()
		st := &l.lines[line]
		if tok.write {
			st.writer = false
		} else {
			st.readers--
		}
		granted = append(granted, grantWaiters(st)...)
		mu.Unlock()
	}

	finishGrants(granted)
}

// grantWaiters hands the line to parked waiters in FIFO order: either one
// writer, or a run of consecutive readers. Caller holds the shard mutex.
// Returns the tokens granted here; they still have to continue their
// acquisition outside the shard mutex.
func grantWaiters(st *lineState) []*Token {
	var granted []*Token

	for len(st.waiters) > 0 {
		w := st.waiters[0]
		if w.tok.write {
			if st.writer || st.readers > 0 {
				break
			}
			st.writer = true
		} else {
			if st.writer {
				break
			}
			st.readers++
		}
		st.waiters = st.waiters[1:]
		w.tok.held[w.index] = true
		w.tok.next = w.index + 1
		granted = append(granted, w.tok)
		if w.tok.write {
			break
		}
	}

	return granted
}

// finishGrants continues the acquisition of granted tokens and fires the
// callbacks of those that completed.
func finishGrants(granted []*Token) {
	for _, t := range granted {
		if t.advance() == Acquired {
			t.cb()
		}
	}
}

// TryLockWr attempts to take a single line's write lock without waiting.
// Used by eviction to verify a victim is not in use.
func (l *LineLocks) TryLockWr(line model.CacheLine) bool {
	mu := l.shardFor(line)
	mu.Lock()
	defer mu.Unlock()
	return l.lines[line].tryAcquire(true)
}

// UnlockWr releases a single line write lock taken with TryLockWr.
func (l *LineLocks) UnlockWr(line model.CacheLine) {
	mu := l.shardFor(line)
	mu.Lock()
	st := &l.lines[line]
	st.writer = false
	granted := grantWaiters(st)
	mu.Unlock()

	finishGrants(granted)
}

// IsLocked reports whether the line is currently held in any mode.
func (l *LineLocks) IsLocked(line model.CacheLine) bool {
	mu := l.shardFor(line)
	mu.Lock()
	defer mu.Unlock()
	st := &l.lines[line]
	return st.writer || st.readers > 0
}
