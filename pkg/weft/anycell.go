package weft

import "reflect"

// AnyCell is the type-erased view of a reactive cell, implemented by both
// Cell[T] and Computed[T]. It is what the property store registers and what
// UI bindings receive: enough surface to read, write, watch and tear down a
// cell without knowing its element type.
type AnyCell interface {
	// ID returns the cell's unique identifier.
	ID() uint64

	// Type returns the cell's element type.
	Type() reflect.Type

	// GetAny returns the current value, boxed.
	GetAny() any

	// SetAny writes a boxed value. The write fails with a TypeError when the
	// runtime type does not match the element type (value unchanged, nothing
	// notified), and with ErrReadOnly on computed cells. With force set, a
	// matching write notifies even when the value is unchanged.
	SetAny(v any, force bool) error

	// Watch subscribes to the unified (old, new) notification channel that
	// every other subscriber shape adapts onto.
	Watch(fn func(old, new any)) *Subscription

	// SetBroadcast installs a hook that runs after the direct subscribers on
	// every notification, or removes it when fn is nil. The property store
	// uses it to emit a generic change event for registered cells; at most
	// one hook is held at a time.
	SetBroadcast(fn func(old, new any))

	// Dispose clears the subscriber list and cascades to owned dependent
	// subscriptions. It performs no further notification and is idempotent.
	Dispose()
}
