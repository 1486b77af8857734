package corosched

import "sync/atomic"

// schedState is a small lock-free state machine for the scheduler's
// lifecycle, cache-line padded to avoid false sharing with neighbouring
// hot fields. Grounded on eventloop/state.go's FastState, scoped here to
// pool lifecycle (running vs. terminating vs. terminated) rather than
// loop run/sleep/poll phases, since the scheduler has no equivalent of the
// event loop's single-threaded sleep/poll cycle.
type schedState struct {
	_ pad64
	v atomic.Uint32
	_ padAfterUint32
}

type poolState uint32

const (
	// poolRunning is the normal operating state: accepting work, workers
	// draining queues.
	poolRunning poolState = iota
	// poolTerminating is entered when a worker recovers a panic from a
	// task. Enqueue and Go still accept work and workers keep draining;
	// Join reports the recorded panic.
	poolTerminating
	// poolTerminated is the terminal state, stored at the start of Close:
	// Enqueue is rejected and workers exit on the sentinels Close pushes.
	poolTerminated
)

func newSchedState() *schedState {
	s := &schedState{}
	s.v.Store(uint32(poolRunning))
	return s
}

func (s *schedState) load() poolState {
	return poolState(s.v.Load())
}

func (s *schedState) store(v poolState) {
	s.v.Store(uint32(v))
}

func (s *schedState) compareAndSwap(from, to poolState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
