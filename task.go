package corosched

import "sync/atomic"

// Task is a type-erased, move-only unit of work: either a plain callable or
// a coroutine continuation (they are represented identically, see coro.go).
//
// Go closures always own their captured state on the heap, so unlike the
// reference design's small-buffer-optimised callable, Task does not model
// inline-vs-heap storage directly (see DESIGN.md, Component A). What is
// preserved is the behavioural contract: a Task owns exactly one runnable,
// increments the scheduler's pending counter exactly once at construction,
// and decrements it exactly once when run to completion — whether that
// completion is normal return or a recovered panic. A Task that is simply
// discarded without ever being run (e.g. still sitting in a ring slot when
// the process exits) never decrements; that is intentional, not a bug, and
// mirrors the reference design's "destruction does not decrement" rule.
type Task struct {
	run     func()
	pending *atomic.Int64
}

// newTask wraps fn as a Task owned by the given pending counter, which is
// incremented immediately. fn must be non-nil.
func newTask(pending *atomic.Int64, fn func()) Task {
	pending.Add(1)
	return Task{run: fn, pending: pending}
}

// sentinelTask is an empty Task used purely to unblock a worker goroutine
// parked in a blocking Ring.Pop during shutdown. It carries no pending
// counter contribution: it represents no user work.
var sentinelTask = Task{}

// isEmpty reports whether t carries no runnable (i.e. it is the zero Task,
// used as a shutdown sentinel).
func (t Task) isEmpty() bool {
	return t.run == nil
}

// invoke runs the task's callable exactly once, decrementing the owning
// pending counter on every exit path, and recovers any panic so that the
// caller (the worker loop) can decide how to react instead of crashing the
// process. It returns the recovered panic value, or nil if the task ran
// (or was empty) without panicking.
func (t Task) invoke() (recovered any) {
	if t.run == nil {
		return nil
	}
	defer func() {
		if t.pending != nil {
			t.pending.Add(-1)
		}
	}()
	defer func() {
		recovered = recover()
	}()
	t.run()
	return
}
