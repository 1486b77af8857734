package corosched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsEveryTaskExactlyOnce(t *testing.T) {
	ring, err := NewRing[Task](64)
	require.NoError(t, err)

	state := newSchedState()
	var ran atomic.Int64
	var pending atomic.Int64

	// The pool is started first: the ring holds only 64 tasks, and Push
	// blocks until a worker frees a slot.
	p := newPool(ring, 4, state, newWorkerRegistry(), nil)

	const n = 500
	for i := 0; i < n; i++ {
		ring.Push(newTask(&pending, func() { ran.Add(1) }))
	}

	require.Eventually(t, func() bool {
		return ran.Load() == n
	}, time.Second, time.Millisecond)

	state.store(poolTerminated)
	p.shutdown(4)
	assert.EqualValues(t, 0, pending.Load())
}

func TestPool_EscalatesPanicViaOnPanic(t *testing.T) {
	ring, err := NewRing[Task](8)
	require.NoError(t, err)
	state := newSchedState()

	var caught atomic.Value
	onPanic := func(recovered any) { caught.Store(recovered) }

	var pending atomic.Int64
	p := newPool(ring, 1, state, newWorkerRegistry(), onPanic)
	ring.Push(newTask(&pending, func() { panic("kaboom") }))

	require.Eventually(t, func() bool {
		v := caught.Load()
		return v != nil && v.(string) == "kaboom"
	}, time.Second, time.Millisecond)

	state.store(poolTerminated)
	p.shutdown(1)
}
