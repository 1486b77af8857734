package corosched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayedStore_DrainDueOrdersByDeadline(t *testing.T) {
	store := newDelayedStore()
	var pending atomic.Int64
	base := time.Now()

	var order []int
	schedule := func(id int, offset time.Duration) {
		store.schedule(newTask(&pending, func() { order = append(order, id) }), base.Add(offset))
	}

	schedule(3, 30*time.Millisecond)
	schedule(1, 10*time.Millisecond)
	schedule(2, 20*time.Millisecond)

	require.Equal(t, 3, store.len())

	next, ok := store.drainDue(base.Add(25*time.Millisecond), func(task Task) {
		task.invoke()
	})
	require.True(t, ok)
	assert.Equal(t, base.Add(30*time.Millisecond), next)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, store.len())

	_, ok = store.drainDue(base.Add(time.Hour), func(task Task) {
		task.invoke()
	})
	assert.False(t, ok, "store should report empty once every deadline has passed")
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDelayedStore_EmptyReportsNoNextDeadline(t *testing.T) {
	store := newDelayedStore()
	_, ok := store.drainDue(time.Now(), func(Task) {})
	assert.False(t, ok)
	assert.Equal(t, 0, store.len())
}
