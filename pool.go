package corosched

import "sync"

// pool owns the worker goroutines draining a single Ring[Task]. Both the
// general-purpose pool (draining the main ring) and the timer pool
// (draining the timed ring) are instances of this same type: the two
// pools differ only in which ring they drain and how many workers they
// run, not in shutdown or panic-handling behaviour.
//
// Grounded on eventloop/loop.go's worker goroutines (a fixed set of
// goroutines each blocking-popping from a shared ring, observing a quit
// flag on every sentinel wakeup) and on EBal0vGG-worker-pool's simpler
// N-goroutine drain loop for the sentinel-shutdown idiom.
type pool struct {
	ring     *Ring[Task]
	wg       sync.WaitGroup
	state    *schedState
	onPanic  func(recovered any)
	registry *workerRegistry
}

func newPool(ring *Ring[Task], workers int, state *schedState, registry *workerRegistry, onPanic func(recovered any)) *pool {
	p := &pool{ring: ring, state: state, registry: registry, onPanic: onPanic}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

// run is the body of a single worker goroutine: pop, invoke, repeat, until
// a sentinel task is observed with the pool already terminating.
func (p *pool) run() {
	defer p.wg.Done()
	if p.registry != nil {
		p.registry.register(goroutineID())
	}
	for {
		t := p.ring.Pop()
		if t.isEmpty() {
			if p.state.load() != poolRunning {
				return
			}
			// Spurious sentinel (shouldn't normally happen outside
			// shutdown); treat as a no-op and keep draining.
			continue
		}
		if recovered := t.invoke(); recovered != nil && p.onPanic != nil {
			p.onPanic(recovered)
		}
	}
}

// shutdown pushes one sentinel per worker so every blocked Pop returns, then
// waits for all workers to exit. Callers must have already moved state out
// of poolRunning so workers that observe the sentinel actually stop instead
// of looping forever.
func (p *pool) shutdown(workers int) {
	for i := 0; i < workers; i++ {
		p.ring.Push(sentinelTask)
	}
	p.wg.Wait()
}
