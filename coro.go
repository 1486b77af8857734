package corosched

import (
	"context"
	"time"
)

// Awaiter is the suspension handle passed into a coroutine body launched
// via Scheduler.Go. Suspending is modelled as blocking the coroutine's own
// goroutine on a 1-buffered channel; resuming is a plain Task whose body
// sends on that channel, pushed onto the scheduler's main ring (Yield,
// ReadFile) or, through the delayed store, onto its timed ring (SleepFor,
// SleepUntil). This
// replaces the reference design's stackful-coroutine-on-a-fiber model,
// which Go cannot express directly: goroutines are already independently
// schedulable, so "suspend" and "resume" become ordinary channel handoffs
// rather than a context switch.
//
// Grounded on eventloop/promisify.go's continuation-passing glue between a
// blocking call and the loop's task queue.
type Awaiter struct {
	sched *Scheduler
}

// Yield unconditionally suspends the calling coroutine, re-queuing it onto
// the main ring so some worker (possibly a different one) resumes it later.
// Yield always suspends and never runs the continuation inline.
func (a *Awaiter) Yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resume := make(chan struct{}, 1)
	a.sched.submit(func() { resume <- struct{}{} })
	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryYield attempts a non-blocking yield: if another task is immediately
// available on the main ring, it is stolen and run inline on the calling
// goroutine before TryYield returns true. If the ring is empty, TryYield
// returns false without suspending at all.
//
// The reference design's try_yield runs the stolen continuation on a
// thread-local scratch slot to avoid recursion through the scheduler; Go
// has no equivalent of a pinned worker thread, so the stolen task simply
// runs inline on whichever goroutine called TryYield (see DESIGN.md,
// Component E). A panic from the stolen task is handled as a worker panic.
func (a *Awaiter) TryYield() bool {
	t, ok := a.sched.mainRing.TryPop()
	if !ok {
		return false
	}
	if recovered := t.invoke(); recovered != nil {
		a.sched.onWorkerPanic(recovered)
	}
	return true
}

// SleepFor suspends the calling coroutine until d has elapsed.
func (a *Awaiter) SleepFor(ctx context.Context, d time.Duration) error {
	return a.SleepUntil(ctx, time.Now().Add(d))
}

// SleepUntil suspends the calling coroutine until the given deadline. If
// the deadline has already passed it returns at once without suspending.
func (a *Awaiter) SleepUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if time.Now().After(deadline) {
		return nil
	}
	resume := make(chan struct{}, 1)
	a.sched.scheduleDelayed(func() {
		a.sched.metrics.sleepJitter.observe(time.Since(deadline).Seconds())
		resume <- struct{}{}
	}, deadline)
	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFile suspends the calling coroutine until path has been opened,
// stat'd, and read in full via the async read engine (ioengine.go). The
// returned slice is sized to the file's length at open time; the caller
// never pre-allocates a buffer, matching the read awaiter's owned-buffer
// data model rather than a caller-supplied-buffer one.
func (a *Awaiter) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		buf []byte
		err error
	}
	resume := make(chan result, 1)
	if err := a.sched.ioEngine.submitRead(path, func(buf []byte, err error) {
		a.sched.submit(func() { resume <- result{buf: buf, err: err} })
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-resume:
		return r.buf, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Go launches fn as a coroutine body, running on its own goroutine with an
// Awaiter bound to this scheduler. fn's pending contribution is tracked
// like any other Task: Join will not return while a launched coroutine
// hasn't finished.
func (s *Scheduler) Go(ctx context.Context, fn func(context.Context, *Awaiter)) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Add(-1)
		fn(ctx, &Awaiter{sched: s})
	}()
}
