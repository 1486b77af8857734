package corosched

import "runtime"

// schedOptions holds configuration resolved at Init time.
//
// Grounded on eventloop/options.go's loopOptions/LoopOption pattern: a
// private options struct, a public functional-option interface, and a
// resolve function that applies defaults first, then each option in order.
type schedOptions struct {
	workers            int
	timerWorkers       int
	ringCapacity       int
	timedRingCapacity  int
	submissionRingSize uint32
	logger             *Logger
	onOverload         func()
}

// Option configures a Scheduler at Init time.
type Option interface {
	apply(*schedOptions)
}

type optionFunc func(*schedOptions)

func (f optionFunc) apply(o *schedOptions) { f(o) }

// WithWorkers sets the number of general-purpose worker goroutines
// draining the main task ring. The default is runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return optionFunc(func(o *schedOptions) { o.workers = n })
}

// WithTimerWorkers sets the number of worker goroutines draining the
// timed-task ring once deadlines fire. The default is 1.
func WithTimerWorkers(n int) Option {
	return optionFunc(func(o *schedOptions) { o.timerWorkers = n })
}

// WithRingCapacity sets the main task ring's capacity, which must be a
// power of two. The default is 4096.
func WithRingCapacity(n int) Option {
	return optionFunc(func(o *schedOptions) { o.ringCapacity = n })
}

// WithTimedRingCapacity sets the timed-task ring's capacity, which must be
// a power of two. The default is 1024.
func WithTimedRingCapacity(n int) Option {
	return optionFunc(func(o *schedOptions) { o.timedRingCapacity = n })
}

// WithSubmissionRingSize sets the async read engine's queue depth. The
// default is 256.
func WithSubmissionRingSize(n uint32) Option {
	return optionFunc(func(o *schedOptions) { o.submissionRingSize = n })
}

// WithLogger sets the structured logger used for scheduler diagnostics
// (worker panics, and TryEnqueue finding the main ring full; nothing is
// logged at shutdown). The default is a no-op logger.
func WithLogger(l *Logger) Option {
	return optionFunc(func(o *schedOptions) { o.logger = l })
}

// WithOnOverload registers a callback invoked when TryEnqueue finds the
// main ring full and declines to submit. Enqueue and Go never invoke it.
// The default is nil (no hook).
func WithOnOverload(fn func()) Option {
	return optionFunc(func(o *schedOptions) { o.onOverload = fn })
}

func resolveOptions(opts []Option) *schedOptions {
	cfg := &schedOptions{
		workers:            defaultWorkerCount(),
		timerWorkers:       1,
		ringCapacity:       4096,
		timedRingCapacity:  1024,
		submissionRingSize: 256,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = newNopLogger()
	}
	return cfg
}

func defaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
