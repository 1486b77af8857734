package corosched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// timerDriverInterval bounds how often the timer driver goroutine wakes up
// to check for expired deadlines and hand them off to the timed-task ring.
const timerDriverInterval = 2 * time.Millisecond

// Scheduler is the top-level handle: it owns the main task ring, the timed
// task ring and delayed-task store, the async read engine, and the worker
// pools draining all of it.
//
// Grounded on eventloop/loop.go's Loop type, generalised from a single
// event-loop goroutine driving everything to a pool-of-workers model: the
// pieces Loop folds into its own run loop (task queue draining, timer
// expiry, shutdown sequencing) become independent goroutines here instead.
type Scheduler struct {
	opts *schedOptions
	log  *Logger

	mainRing  *Ring[Task]
	timedRing *Ring[Task]
	timers    *delayedStore
	ioEngine  ioRing

	mainPool  *pool
	timerPool *pool
	registry  *workerRegistry

	_       padAfterUint64
	pending atomic.Int64
	_       padAfterUint64
	state   *schedState

	lastPanic atomic.Pointer[TaskPanicError]

	metrics *metricsCollector

	driverQuit chan struct{}
	driverDone chan struct{}
	closeOnce  sync.Once
}

// Init constructs and starts a Scheduler: worker pools, the timer driver,
// and the async read engine are all running by the time Init returns.
func Init(opts ...Option) (*Scheduler, error) {
	cfg := resolveOptions(opts)

	mainRing, err := NewRing[Task](cfg.ringCapacity)
	if err != nil {
		return nil, err
	}
	timedRing, err := NewRing[Task](cfg.timedRingCapacity)
	if err != nil {
		return nil, err
	}
	ioEngine, err := newIOEngine(cfg.submissionRingSize)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:       cfg,
		log:        cfg.logger,
		mainRing:   mainRing,
		timedRing:  timedRing,
		timers:     newDelayedStore(),
		ioEngine:   ioEngine,
		state:      newSchedState(),
		metrics:    newMetricsCollector(),
		registry:   newWorkerRegistry(),
		driverQuit: make(chan struct{}),
		driverDone: make(chan struct{}),
	}

	s.mainPool = newPool(mainRing, cfg.workers, s.state, s.registry, s.onWorkerPanic)
	s.timerPool = newPool(timedRing, cfg.timerWorkers, s.state, s.registry, s.onWorkerPanic)

	go s.runTimerDriver()

	return s, nil
}

// onWorkerPanic is invoked from a worker goroutine when a task's invoke
// recovers a panic. It's escalation, not abort: the panic is recorded and
// the scheduler stops accepting new Join waits optimistically, but workers
// keep draining whatever is already queued rather than being torn down
// mid-flight.
func (s *Scheduler) onWorkerPanic(recovered any) {
	logWorkerPanic(s.log, recovered)
	s.lastPanic.CompareAndSwap(nil, &TaskPanicError{Value: recovered})
	s.state.compareAndSwap(poolRunning, poolTerminating)
}

// submit wraps fn as a Task owned by this scheduler's pending counter and
// pushes it onto the main ring, recording how long it sat in the ring
// before a worker picked it up.
func (s *Scheduler) submit(fn func()) {
	submittedAt := time.Now()
	s.mainRing.Push(newTask(&s.pending, func() {
		s.metrics.submissionLag.observe(time.Since(submittedAt).Seconds())
		fn()
	}))
}

// scheduleDelayed wraps fn as a Task and arranges for it to be pushed onto
// the timed ring once deadline has passed.
func (s *Scheduler) scheduleDelayed(fn func(), deadline time.Time) {
	s.timers.schedule(newTask(&s.pending, fn), deadline)
}

// Enqueue submits fn to run on a general worker. It returns
// ErrSchedulerClosed if the scheduler has already been closed.
func (s *Scheduler) Enqueue(fn func()) error {
	if s.state.load() == poolTerminated {
		return ErrSchedulerClosed
	}
	s.submit(fn)
	return nil
}

// TryEnqueue submits fn without blocking even if the main ring is full. It
// returns false (and does not submit) if the ring was full, invoking the
// configured overload hook if one was set.
func (s *Scheduler) TryEnqueue(fn func()) bool {
	submittedAt := time.Now()
	t := newTask(&s.pending, func() {
		s.metrics.submissionLag.observe(time.Since(submittedAt).Seconds())
		fn()
	})
	if s.mainRing.TryPush(t) {
		return true
	}
	// undo the pending increment: the task was never actually queued.
	s.pending.Add(-1)
	logOverload(s.log, "main", s.mainRing.Len())
	if s.opts.onOverload != nil {
		s.opts.onOverload()
	}
	return false
}

// runTimerDriver periodically drains expired timed tasks into the timed
// ring. It's a plain polling loop rather than a precise per-deadline
// wakeup: deadlines only need to fire no earlier than requested, and a
// short fixed interval is simpler and cheaper than threading a resettable
// timer through concurrent schedule calls.
func (s *Scheduler) runTimerDriver() {
	defer close(s.driverDone)
	ticker := time.NewTicker(timerDriverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.driverQuit:
			s.drainAllDueTimers()
			return
		case <-ticker.C:
			s.drainAllDueTimers()
		}
	}
}

func (s *Scheduler) drainAllDueTimers() {
	now := time.Now()
	s.timers.drainDue(now, func(t Task) {
		s.timedRing.Push(t)
	})
}

// Join blocks until every submitted task and launched coroutine has run to
// completion, or ctx is cancelled, or a worker panic has been observed.
// Calling Join from a goroutine belonging to this scheduler's own worker
// pools is rejected outright, since such a call would be waiting on its
// own completion.
func (s *Scheduler) Join(ctx context.Context) error {
	if s.registry.isMember(goroutineID()) {
		return ErrReentrantJoin
	}

	ticker := time.NewTicker(timerDriverInterval)
	defer ticker.Stop()
	for {
		if p := s.lastPanic.Load(); p != nil {
			return p
		}
		if s.pending.Load() == 0 && s.timers.len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the timer driver, shuts down both worker pools, and closes
// the async read engine. It does not wait for pending work to finish;
// callers that want a graceful drain should Join first.
func (s *Scheduler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.store(poolTerminated)

		close(s.driverQuit)
		<-s.driverDone

		s.mainPool.shutdown(s.opts.workers)
		s.timerPool.shutdown(s.opts.timerWorkers)

		err = s.ioEngine.close()
	})
	return err
}

// Metrics returns a point-in-time snapshot of scheduler observability
// data.
func (s *Scheduler) Metrics() Metrics {
	return Metrics{
		SleepJitter:       s.metrics.sleepJitter.snapshot(),
		SubmissionLag:     s.metrics.submissionLag.snapshot(),
		PendingTasks:      s.pending.Load(),
		MainRingDepth:     s.mainRing.Len(),
		TimedRingDepth:    s.timedRing.Len(),
		TimersOutstanding: s.timers.len(),
	}
}
