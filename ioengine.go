package corosched

// ioRing is the shared boundary between the scheduler and whichever async
// read backend the build targets: a real io_uring submission/completion
// ring on Linux (ioengine_linux.go), or a goroutine-pool emulation
// elsewhere (ioengine_other.go). Both open path, stat it, and hand the
// caller an owned buffer of exactly the file's size — the caller never
// supplies or sizes a buffer itself.
type ioRing interface {
	// submitRead opens path, determines its size, and queues an async read
	// of the whole file into a freshly allocated buffer. When submitRead
	// returns nil, done is invoked at most once, from some other goroutine,
	// with either the filled buffer or a non-nil error; a read still
	// outstanding when close is called is dropped and its done is never
	// invoked. submitRead itself never blocks on the read completing, only
	// on backpressure from a full submission ring.
	submitRead(path string, done func(buf []byte, err error)) error
	// close releases backend resources. No further submitRead calls are
	// valid afterward.
	close() error
}
