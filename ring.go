package corosched

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// Ring is a wait-capable, fixed power-of-two-capacity, bounded
// multi-producer multi-consumer queue, used for both the scheduler's main
// task ring and its timed task ring.
//
// Slot protocol: each slot carries a turn counter. state == turn means
// "empty, awaiting the producer whose turn this is"; state == turn+1
// means "full, awaiting the consumer whose turn this is". Producers claim
// a turn by atomically incrementing tail, write the payload, then store
// turn+1 (release). Consumers claim a turn by atomically incrementing
// head, wait for state == turn+1 (acquire), move the payload out, then
// store turn+N to hand the slot back to the next producer cycle.
//
// Slots are addressed through a bit-reversal permutation rather than
// directly by turn number, so that consecutive turns land on different
// underlying array slots and avoid cache-line contention between
// neighbouring producers/consumers, without needing to know sizeof(T) to
// compute a literal cache-line stride (Go generics can't do that). Bit
// reversal modulo a power of two is a textbook bijection: every turn
// still maps to exactly one slot, and every slot is visited once per
// full cycle.
//
// Grounded on eventloop/ingress.go's MicrotaskRing (atomic head/tail,
// per-slot atomic sequence numbers, release/acquire discipline), widened
// from that type's single-consumer design to true MPMC.
type Ring[T any] struct {
	slots    []ringSlot[T]
	mask     uint32
	shiftLog uint32

	_    padAfterUint32
	head atomic.Uint32
	_    padAfterUint32
	tail atomic.Uint32

	// waitMu/waitCond implement a portable "wait on address" primitive:
	// sync.Cond is itself futex-backed at runtime on Linux, making it the
	// idiomatic Go equivalent of a raw wait-on-word syscall, without
	// requiring cgo or manual futex wrappers.
	waitMu   sync.Mutex
	waitCond *sync.Cond
	waiters  atomic.Int32
}

type ringSlot[T any] struct {
	_     padAfterUint32
	state atomic.Uint32
	val   T
}

// NewRing creates a Ring of the given capacity, which must be a power of
// two greater than zero.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, ErrRingCapacity
	}
	r := &Ring[T]{
		slots:    make([]ringSlot[T], capacity),
		mask:     uint32(capacity - 1),
		shiftLog: uint32(bits.TrailingZeros(uint(capacity))),
	}
	r.waitCond = sync.NewCond(&r.waitMu)
	// Turn i lives in physical slot shuffle(i), so that slot starts out
	// awaiting the producer of turn i.
	for i := range r.slots {
		r.slots[r.shuffle(uint32(i))].state.Store(uint32(i))
	}
	return r, nil
}

// shuffle maps a logical turn to a physical slot index via bit-reversal
// modulo len(slots), a bijection that spreads consecutive turns apart.
func (r *Ring[T]) shuffle(turn uint32) uint32 {
	logical := turn & r.mask
	if r.shiftLog == 0 {
		return 0
	}
	return bits.Reverse32(logical) >> (32 - r.shiftLog)
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// Len returns a best-effort count of queued elements; it may be stale the
// instant it's observed under concurrent access.
func (r *Ring[T]) Len() int {
	tail := r.tail.Load()
	head := r.head.Load()
	// head runs ahead of tail while consumers are parked in Pop.
	if n := int32(tail - head); n > 0 {
		return int(n)
	}
	return 0
}

// Push blocks until space is available, then enqueues v.
func (r *Ring[T]) Push(v T) {
	turn := r.tail.Add(1) - 1
	idx := r.shuffle(turn)
	slot := &r.slots[idx]
	r.waitFor(slot, turn)
	slot.val = v
	slot.state.Store(turn + 1)
	r.wake()
}

// Pop blocks until an element is available, then dequeues and returns it.
func (r *Ring[T]) Pop() T {
	turn := r.head.Add(1) - 1
	idx := r.shuffle(turn)
	slot := &r.slots[idx]
	r.waitFor(slot, turn+1)
	v := slot.val
	var zero T
	slot.val = zero
	slot.state.Store(turn + uint32(len(r.slots)))
	r.wake()
	return v
}

// TryPush attempts to enqueue v without blocking. It returns false iff the
// ring was observed full at the point of the compare-and-swap.
func (r *Ring[T]) TryPush(v T) bool {
	for {
		tail := r.tail.Load()
		head := r.head.Load()
		// Signed difference: head may run ahead of tail while consumers
		// are parked in Pop, which leaves the ring empty, not full.
		if int32(tail-head) >= int32(len(r.slots)) {
			return false
		}
		if r.tail.CompareAndSwap(tail, tail+1) {
			idx := r.shuffle(tail)
			slot := &r.slots[idx]
			r.waitFor(slot, tail)
			slot.val = v
			slot.state.Store(tail + 1)
			r.wake()
			return true
		}
	}
}

// TryPop attempts to dequeue without blocking. It returns the zero value
// and false iff the ring was observed empty at the point of the
// compare-and-swap.
func (r *Ring[T]) TryPop() (v T, ok bool) {
	for {
		head := r.head.Load()
		tail := r.tail.Load()
		if head >= tail {
			return v, false
		}
		idx := r.shuffle(head)
		slot := &r.slots[idx]
		if slot.state.Load() != head+1 {
			// A producer claimed this turn but hasn't published yet; the
			// ring isn't really "empty", but there's nothing ready for a
			// non-blocking caller right now.
			return v, false
		}
		if r.head.CompareAndSwap(head, head+1) {
			v = slot.val
			var zero T
			slot.val = zero
			slot.state.Store(head + uint32(len(r.slots)))
			r.wake()
			return v, true
		}
	}
}

// waitFor spins briefly, then falls back to a condition-variable wait
// until slot.state equals want. Waiter accounting lets wake() skip the
// broadcast entirely when nobody is parked.
func (r *Ring[T]) waitFor(slot *ringSlot[T], want uint32) {
	const spinLimit = 256
	for i := 0; i < spinLimit; i++ {
		if slot.state.Load() == want {
			return
		}
	}

	r.waiters.Add(1)
	defer r.waiters.Add(-1)

	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	for slot.state.Load() != want {
		r.waitCond.Wait()
	}
}

func (r *Ring[T]) wake() {
	if r.waiters.Load() == 0 {
		return
	}
	r.waitMu.Lock()
	r.waitCond.Broadcast()
	r.waitMu.Unlock()
}
