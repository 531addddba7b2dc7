package weft

import (
	"reflect"
	"sync"
)

// Cell is a mutable reactive value container.
// It may be read and written from any goroutine: the value is guarded by a
// lock, and subscribers are notified outside the lock from a snapshot of the
// subscriber list.
type Cell[T any] struct {
	base cellBase

	// value is the current cell value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal is the equality function used to decide whether a write changed
	// the value. If nil, uses default equality checking.
	equal func(T, T) bool
}

// NewCell creates a cell with the given initial value.
func NewCell[T any](initial T, opts ...Option) *Cell[T] {
	c := &Cell[T]{value: initial}
	c.base.init(opts...)
	return c
}

// WithEquals returns the cell configured with a custom equality function.
// Useful for element types where reflect.DeepEqual is too expensive or has
// the wrong semantics.
func (c *Cell[T]) WithEquals(fn func(T, T) bool) *Cell[T] {
	c.equal = fn
	return c
}

// ID returns the unique identifier for this cell.
func (c *Cell[T]) ID() uint64 {
	return c.base.id
}

// Type returns the cell's element type.
func (c *Cell[T]) Type() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set updates the value and notifies subscribers if it changed.
func (c *Cell[T]) Set(value T) {
	c.set(value, false)
}

// ForceSet updates the value and notifies subscribers even when the new
// value equals the old one; in that case subscribers observe old == new.
func (c *Cell[T]) ForceSet(value T) {
	c.set(value, true)
}

// Update atomically reads and updates the value.
// The function receives the current value and returns the new one.
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	old := c.value
	next := fn(old)
	changed := !c.equals(old, next)
	if changed {
		c.value = next
	}
	c.mu.Unlock()

	if changed {
		c.base.fanout(old, next)
	}
}

// set swaps the value under the lock and notifies from outside it.
func (c *Cell[T]) set(value T, force bool) {
	c.mu.Lock()
	old := c.value
	changed := !c.equals(old, value)
	if changed {
		c.value = value
	}
	c.mu.Unlock()

	if changed || force {
		c.base.fanout(old, value)
	}
}

// GetAny returns the current value, boxed.
func (c *Cell[T]) GetAny() any {
	return c.Get()
}

// SetAny writes a boxed value. If the runtime type of v does not match the
// cell's element type the write is dropped: the value stays unchanged, no
// notification fires, and a TypeError is returned.
func (c *Cell[T]) SetAny(v any, force bool) error {
	tv, ok := v.(T)
	if !ok {
		return &TypeError{Want: c.Type(), Got: reflect.TypeOf(v)}
	}
	c.set(tv, force)
	return nil
}

// Subscribe registers a typed value subscriber and returns its disposal
// token. The subscriber receives the new value on every notification.
func (c *Cell[T]) Subscribe(fn func(T)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	return c.base.addSubscriber(func(_, new any) {
		fn(new.(T))
	})
}

// SubscribeAny registers a boxed value subscriber.
func (c *Cell[T]) SubscribeAny(fn func(any)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	return c.base.addSubscriber(func(_, new any) {
		fn(new)
	})
}

// SubscribeChange registers an old-and-new subscriber.
func (c *Cell[T]) SubscribeChange(fn func(old, new T)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	return c.base.addSubscriber(func(old, new any) {
		fn(old.(T), new.(T))
	})
}

// Watch subscribes to the unified (old, new) channel directly.
func (c *Cell[T]) Watch(fn func(old, new any)) *Subscription {
	return c.base.addSubscriber(fn)
}

// AddDependent registers ownership of a subscription created by a derived or
// combinator chain; Dispose cascades to it.
func (c *Cell[T]) AddDependent(sub *Subscription) {
	c.base.addDependent(sub)
}

// SetBroadcast installs the after-subscribers notification hook, replacing
// any previous one. Pass nil to remove it.
func (c *Cell[T]) SetBroadcast(fn func(old, new any)) {
	c.base.setBroadcast(fn)
}

// SubscriberCount returns the number of active subscribers.
func (c *Cell[T]) SubscriberCount() int {
	return c.base.subscriberCount()
}

// Dispose clears all subscribers and cascades Dispose to owned dependent
// subscriptions in reverse registration order. The value itself remains
// readable and writable; no notification fires.
func (c *Cell[T]) Dispose() {
	c.base.dispose()
}

// equals checks two values with the configured equality function.
func (c *Cell[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}

var _ AnyCell = (*Cell[int])(nil)
