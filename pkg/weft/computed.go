package weft

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Computed is a read-only cell whose value is derived by a pure function.
//
// Computed cells are lazy: the function runs only when the value is read
// while invalid. If several invalidations arrive between reads, the function
// runs once. Subscribers are notified only when a recomputation produces a
// value different from the previously cached one; re-reads of a clean cell
// never notify, and there is no forced-notify variant.
type Computed[T any] struct {
	base cellBase

	// compute derives the cell's value.
	compute func() T

	// value is the last computed value; seeded reports whether compute has
	// produced it at least once. Both are protected by valueMu.
	value  T
	seeded bool

	valueMu sync.RWMutex

	// valid indicates whether the cached value is current.
	// When false, the next Get recomputes.
	valid atomic.Bool

	// computing guards against recursive recomputation when the compute
	// function reads this cell again.
	computing atomic.Bool

	// equal is the equality function for detecting value changes.
	equal func(T, T) bool
}

// NewComputed creates a computed cell with the given function.
// The function is not run immediately; it runs lazily on first Get.
//
// The function is not fault-isolated: a panic inside it propagates to the
// Get or Recompute caller, the cached value stays untouched, and the cell
// stays invalid so a later read retries.
func NewComputed[T any](compute func() T, opts ...Option) *Computed[T] {
	m := &Computed[T]{compute: compute}
	m.base.init(opts...)
	return m
}

// WithEquals returns the cell configured with a custom equality function.
func (m *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	m.equal = fn
	return m
}

// ID returns the unique identifier for this cell.
func (m *Computed[T]) ID() uint64 {
	return m.base.id
}

// Type returns the cell's element type.
func (m *Computed[T]) Type() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Get returns the value, recomputing exactly when invalid.
func (m *Computed[T]) Get() T {
	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	return m.value
}

// Invalidate marks the cached value stale without recomputing or notifying.
// The next Get recomputes.
func (m *Computed[T]) Invalidate() {
	m.valid.CompareAndSwap(true, false)
}

// Recompute forces an immediate recomputation and returns the result,
// notifying subscribers if the value changed.
func (m *Computed[T]) Recompute() T {
	m.recompute()

	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	return m.value
}

// GetAny returns the value, boxed, recomputing if invalid.
func (m *Computed[T]) GetAny() any {
	return m.Get()
}

// SetAny always fails: computed cells are read-only.
func (m *Computed[T]) SetAny(v any, force bool) error {
	return ErrReadOnly
}

// Subscribe registers a typed value subscriber.
func (m *Computed[T]) Subscribe(fn func(T)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	return m.base.addSubscriber(func(_, new any) {
		fn(new.(T))
	})
}

// SubscribeAny registers a boxed value subscriber.
func (m *Computed[T]) SubscribeAny(fn func(any)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	return m.base.addSubscriber(func(_, new any) {
		fn(new)
	})
}

// SubscribeChange registers an old-and-new subscriber.
func (m *Computed[T]) SubscribeChange(fn func(old, new T)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	return m.base.addSubscriber(func(old, new any) {
		fn(old.(T), new.(T))
	})
}

// Watch subscribes to the unified (old, new) channel directly.
func (m *Computed[T]) Watch(fn func(old, new any)) *Subscription {
	return m.base.addSubscriber(fn)
}

// AddDependent registers ownership of a subscription created by a derived or
// combinator chain; Dispose cascades to it.
func (m *Computed[T]) AddDependent(sub *Subscription) {
	m.base.addDependent(sub)
}

// SetBroadcast installs the after-subscribers notification hook, replacing
// any previous one. Pass nil to remove it.
func (m *Computed[T]) SetBroadcast(fn func(old, new any)) {
	m.base.setBroadcast(fn)
}

// SubscriberCount returns the number of active subscribers.
func (m *Computed[T]) SubscriberCount() int {
	return m.base.subscriberCount()
}

// Dispose clears all subscribers and cascades Dispose to owned dependent
// subscriptions, unhooking the cell from its sources. No notification fires.
func (m *Computed[T]) Dispose() {
	m.base.dispose()
}

// recompute runs the computation and updates the cached value, notifying
// subscribers when the value changed. The very first computation seeds the
// cache silently.
func (m *Computed[T]) recompute() {
	if m.computing.Swap(true) {
		// Re-entrant read during computation; serve the stale value.
		return
	}
	defer m.computing.Store(false)

	next := m.compute()

	m.valueMu.Lock()
	old := m.value
	changed := m.seeded && !m.equals(old, next)
	m.value = next
	m.seeded = true
	m.valueMu.Unlock()

	m.valid.Store(true)

	if changed {
		m.base.fanout(old, next)
	}
}

// equals checks two values with the configured equality function.
func (m *Computed[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

var _ AnyCell = (*Computed[int])(nil)
