package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockcache/model"
)

func lines(idx ...model.CacheLine) []model.CacheLine { return idx }

func TestLineLocks_ReadShared(t *testing.T) {
	l := NewLineLocks(8)

	tok1 := l.NewToken(lines(1, 2), LockRead)
	tok2 := l.NewToken(lines(1, 2), LockRead)

	require.Equal(t, Acquired, l.Lock(tok1, nil))
	require.Equal(t, Acquired, l.Lock(tok2, nil))

	assert.True(t, l.IsLocked(1))

	l.Unlock(tok1)
	assert.True(t, l.IsLocked(1))
	l.Unlock(tok2)
	assert.False(t, l.IsLocked(1))
}

func TestLineLocks_WriteExclusive(t *testing.T) {
	l := NewLineLocks(8)

	wr := l.NewToken(lines(3), LockWrite)
	require.Equal(t, Acquired, l.Lock(wr, nil))

	var resumed atomic.Bool
	rd := l.NewToken(lines(3), LockRead)
	require.Equal(t, Pending, l.Lock(rd, func() { resumed.Store(true) }))

	assert.False(t, resumed.Load())

	l.Unlock(wr)
	assert.True(t, resumed.Load(), "waiter not resumed on unlock")
	assert.True(t, l.IsLocked(3))

	l.Unlock(rd)
	assert.False(t, l.IsLocked(3))
}

func TestLineLocks_CallbackFiresOnLastGrant(t *testing.T) {
	l := NewLineLocks(8)

	wr1 := l.NewToken(lines(1), LockWrite)
	wr2 := l.NewToken(lines(2), LockWrite)
	require.Equal(t, Acquired, l.Lock(wr1, nil))
	require.Equal(t, Acquired, l.Lock(wr2, nil))

	var resumed atomic.Int32
	tok := l.NewToken(lines(1, 2), LockWrite)
	require.Equal(t, Pending, l.Lock(tok, func() { resumed.Add(1) }))

	l.Unlock(wr1)
	assert.Equal(t, int32(0), resumed.Load(), "resumed before all locks granted")

	l.Unlock(wr2)
	assert.Equal(t, int32(1), resumed.Load())

	assert.True(t, l.IsLocked(1))
	assert.True(t, l.IsLocked(2))
	l.Unlock(tok)
	assert.False(t, l.IsLocked(1))
	assert.False(t, l.IsLocked(2))
}

func TestLineLocks_WaitersFIFO(t *testing.T) {
	l := NewLineLocks(4)

	wr := l.NewToken(lines(0), LockWrite)
	require.Equal(t, Acquired, l.Lock(wr, nil))

	var order []int
	var mu sync.Mutex

	first := l.NewToken(lines(0), LockWrite)
	second := l.NewToken(lines(0), LockWrite)
	require.Equal(t, Pending, l.Lock(first, func() {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	}))
	require.Equal(t, Pending, l.Lock(second, func() {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}))

	l.Unlock(wr)
	l.Unlock(first)
	l.Unlock(second)

	assert.Equal(t, []int{1, 2}, order)
}

func TestLineLocks_ReadersGrantedTogether(t *testing.T) {
	l := NewLineLocks(4)

	wr := l.NewToken(lines(0), LockWrite)
	require.Equal(t, Acquired, l.Lock(wr, nil))

	var resumed atomic.Int32
	rd1 := l.NewToken(lines(0), LockRead)
	rd2 := l.NewToken(lines(0), LockRead)
	require.Equal(t, Pending, l.Lock(rd1, func() { resumed.Add(1) }))
	require.Equal(t, Pending, l.Lock(rd2, func() { resumed.Add(1) }))

	l.Unlock(wr)
	assert.Equal(t, int32(2), resumed.Load(), "consecutive readers should be granted together")

	l.Unlock(rd1)
	l.Unlock(rd2)
	assert.False(t, l.IsLocked(0))
}

func TestLineLocks_NewReaderQueuesBehindWaitingWriter(t *testing.T) {
	l := NewLineLocks(4)

	rd := l.NewToken(lines(0), LockRead)
	require.Equal(t, Acquired, l.Lock(rd, nil))

	wr := l.NewToken(lines(0), LockWrite)
	var wrGranted atomic.Bool
	require.Equal(t, Pending, l.Lock(wr, func() { wrGranted.Store(true) }))

	// A new reader must not starve the waiting writer.
	rd2 := l.NewToken(lines(0), LockRead)
	var rd2Granted atomic.Bool
	require.Equal(t, Pending, l.Lock(rd2, func() { rd2Granted.Store(true) }))

	l.Unlock(rd)
	assert.True(t, wrGranted.Load())
	assert.False(t, rd2Granted.Load())

	l.Unlock(wr)
	assert.True(t, rd2Granted.Load())
	l.Unlock(rd2)
}

func TestLineLocks_TryLockWr(t *testing.T) {
	l := NewLineLocks(4)

	require.True(t, l.TryLockWr(2))
	assert.False(t, l.TryLockWr(2))
	assert.True(t, l.IsLocked(2))

	l.UnlockWr(2)
	assert.False(t, l.IsLocked(2))
	assert.True(t, l.TryLockWr(2))
	l.UnlockWr(2)
}

func TestLineLocks_ConcurrentStress(t *testing.T) {
	const lineCount = 16
	l := NewLineLocks(lineCount)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				a := model.CacheLine((seed + i) % lineCount)
				b := model.CacheLine((seed + i + 3) % lineCount)
				if a == b {
					continue
				}
				if a > b {
					a, b = b, a
				}

				tok := l.NewToken(lines(a, b), LockWrite)
				done := make(chan struct{})
				status := l.Lock(tok, func() { close(done) })
				if status == Pending {
					<-done
				}
				l.Unlock(tok)
			}
		}(w)
	}
	wg.Wait()

	for i := model.CacheLine(0); i < lineCount; i++ {
		assert.False(t, l.IsLocked(i), "line %d leaked a lock", i)
	}
}
