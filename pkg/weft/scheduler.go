package weft

// Scheduler marshals work onto a designated main execution context.
// It is the cell-side view of the thread marshaller; both the live loop and
// the synchronous test variant in package mainthread satisfy it.
type Scheduler interface {
	// IsMain reports whether the calling goroutine is the designated context.
	IsMain() bool

	// Dispatch queues fn to run on the designated context.
	// Implementations must never drop fn.
	Dispatch(fn func())
}
