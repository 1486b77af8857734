package corosched

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTask_PendingLifecycle(t *testing.T) {
	var pending atomic.Int64

	task := newTask(&pending, func() {})
	assert.EqualValues(t, 1, pending.Load())

	recovered := task.invoke()
	assert.Nil(t, recovered)
	assert.EqualValues(t, 0, pending.Load())
}

func TestTask_PendingDecrementsOnPanic(t *testing.T) {
	var pending atomic.Int64

	task := newTask(&pending, func() { panic("boom") })
	recovered := task.invoke()
	assert.Equal(t, "boom", recovered)
	assert.EqualValues(t, 0, pending.Load(), "pending must decrement even when the callable panics")
}

func TestTask_UnrunDiscardDoesNotDecrement(t *testing.T) {
	var pending atomic.Int64
	_ = newTask(&pending, func() {})
	assert.EqualValues(t, 1, pending.Load(), "a task that is never invoked never decrements pending")
}

func TestTask_EmptyIsSentinel(t *testing.T) {
	assert.True(t, sentinelTask.isEmpty())
	assert.Nil(t, sentinelTask.invoke())

	var pending atomic.Int64
	task := newTask(&pending, func() {})
	assert.False(t, task.isEmpty())
}
