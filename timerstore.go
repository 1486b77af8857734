package corosched

import (
	"container/heap"
	"sync"
	"time"
)

// timerEntry is a (task, deadline) pair, ordered by deadline ascending.
type timerEntry struct {
	task     Task
	deadline time.Time
}

// timerHeap implements container/heap.Interface over timerEntry, exactly
// as eventloop/loop.go does for its own timer heap.
type timerHeap []timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// delayedStore is a minimum-priority queue keyed by deadline, guarded by
// a single mutex. Two tasks scheduled for the same deadline may drain in
// either order; ties are not stabilised.
type delayedStore struct {
	mu   sync.Mutex
	heap timerHeap
}

func newDelayedStore() *delayedStore {
	return &delayedStore{}
}

// schedule enqueues task to fire at deadline.
func (d *delayedStore) schedule(task Task, deadline time.Time) {
	d.mu.Lock()
	heap.Push(&d.heap, timerEntry{task: task, deadline: deadline})
	d.mu.Unlock()
}

// drainDue pops every entry whose deadline is <= now, publishing each via
// publish, and returns the next pending deadline (ok is false if the store
// is empty after draining).
func (d *delayedStore) drainDue(now time.Time, publish func(Task)) (next time.Time, ok bool) {
	d.mu.Lock()
	for len(d.heap) > 0 && !d.heap[0].deadline.After(now) {
		entry := heap.Pop(&d.heap).(timerEntry)
		d.mu.Unlock()
		publish(entry.task)
		d.mu.Lock()
	}
	if len(d.heap) > 0 {
		next = d.heap[0].deadline
		ok = true
	}
	d.mu.Unlock()
	return next, ok
}

// len reports the number of still-pending timed tasks.
func (d *delayedStore) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.heap)
}
