package core

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(nil)

	a := &Request{}
	b := &Request{}
	c := &Request{}

	q.PushBack(a, false)
	q.PushBack(b, false)
	q.PushFront(c, false)

	require.Equal(t, 3, q.Len())

	assert.Same(t, c, q.Pop())
	assert.Same(t, a, q.Pop())
	assert.Same(t, b, q.Pop())
	assert.Nil(t, q.Pop())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_Kick(t *testing.T) {
	var kicks atomic.Int32
	var sawSync atomic.Bool

	q := NewQueue(func(_ *Queue, allowSync bool) {
		kicks.Add(1)
		if allowSync {
			sawSync.Store(true)
		}
	})

	q.PushBack(&Request{}, false)
	q.PushFront(&Request{}, true)

	assert.Equal(t, int32(2), kicks.Load())
	assert.True(t, sawSync.Load())
}

func TestQueue_RunDispatches(t *testing.T) {
	q := NewQueue(nil)

	var reads, writes int
	ioIf := &IOIf{
		Read:  func(*Request) { reads++ },
		Write: func(*Request) { writes++ },
	}

	rd := &Request{}
	rd.SetIOIf(ioIf)
	wr := &Request{RW: 1}
	wr.SetIOIf(ioIf)

	q.PushBack(rd, false)
	q.PushBack(wr, false)

	q.Run()

	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)
	assert.Equal(t, 0, q.Len())
}
