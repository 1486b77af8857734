package corosched

import "errors"

// Standard errors returned by the scheduler.
var (
	// ErrSchedulerClosed is returned by Enqueue once Close has been called
	// on the scheduler.
	ErrSchedulerClosed = errors.New("corosched: scheduler is closed")

	// ErrReentrantJoin is returned when Join is called from one of the
	// scheduler's own worker goroutines, i.e. from inside a task the
	// scheduler is running. Reentrant joining is forbidden (see DESIGN.md,
	// Open Question #2).
	ErrReentrantJoin = errors.New("corosched: cannot call Join from within the pump")

	// ErrRingCapacity is returned by NewRing when the requested capacity is
	// not a positive power of two.
	ErrRingCapacity = errors.New("corosched: ring capacity must be a power of two")

	// ErrOpenFailed marks a ReadFile whose target file could not be opened;
	// the underlying open error is wrapped alongside it. On Linux the open
	// happens before anything is submitted, so ReadFile returns it at once;
	// the fallback engine opens the file on one of its workers and reports
	// it through the read's completion. The pending counter is not touched
	// either way. On Linux, Init also returns it when the io_uring ring
	// cannot be set up.
	ErrOpenFailed = errors.New("corosched: failed to open file for read")

	// ErrIOEngineClosed is returned by a submission made after the async
	// read engine has been torn down.
	ErrIOEngineClosed = errors.New("corosched: async read engine is closed")
)

// TaskPanicError wraps a value recovered from a panicking Task, preserving
// the panic value for inspection via errors.As while letting callers use
// errors.Is/errors.As uniformly with other scheduler errors.
type TaskPanicError struct {
	Value any
}

func (e *TaskPanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "corosched: task panicked: " + err.Error()
	}
	return "corosched: task panicked"
}

// Unwrap returns the recovered value if it is itself an error, enabling
// errors.Is/errors.As to see through to the original cause.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
