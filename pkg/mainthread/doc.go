// Package mainthread marshals queued actions onto one designated goroutine,
// the main execution context where side-effecting UI work is allowed to run.
//
// Loop is the live variant: actions are enqueued from any goroutine and
// drained in FIFO order, a bounded number per tick; overflow stays queued for
// later ticks and is never dropped. Sync is the synchronous variant for tests
// and single-threaded hosts: actions run immediately on the caller.
//
// Both variants satisfy the Scheduler interfaces of the cell and bus
// packages.
package mainthread
