// Package weft provides the reactive core for the Weft framework.
//
// The core building block is a reactive cell: a thread-safe value container
// that notifies subscribers when its value changes. Cells may be mutated from
// any goroutine; notification is delivered either inline or marshalled onto a
// designated main context via a Scheduler.
//
// # Core Types
//
// Cell[T] is a mutable reactive value container:
//
//	health := NewCell(100)
//	value := health.Get()  // Read
//	health.Set(80)         // Write (notifies subscribers if changed)
//	health.Update(func(n int) int { return n - 10 })
//
// Computed[T] is a read-only derived cell, recomputed lazily:
//
//	total := NewComputed(func() int { return a.Get() + b.Get() })
//	value := total.Get()  // Recomputes only if invalidated
//
// Subscriptions come in three shapes and all return a disposal token:
//
//	sub := health.Subscribe(func(v int) { ... })          // typed value
//	sub := health.SubscribeAny(func(v any) { ... })       // boxed value
//	sub := health.SubscribeChange(func(old, new int) { ... })
//	sub.Dispose()  // idempotent
//
// # Locking Discipline
//
// Every cell mutates its value under a lock and notifies outside the lock
// from a snapshot of the subscriber list, so subscribers may freely subscribe
// or dispose during notification without deadlocking or corrupting the list.
package weft
