package weft

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Subscription is the disposal token returned by every subscribe operation.
// Dispose removes exactly the one registration that produced the token and
// is safe to call more than once; only the first call has any effect.
type Subscription struct {
	id       uint64
	cancel   func()
	disposed atomic.Bool
}

// NewSubscription wraps a cancel function in a disposal token.
// The cancel function runs at most once, on the first Dispose call.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{id: nextID(), cancel: cancel}
}

// ID returns the unique identifier for this subscription.
func (s *Subscription) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Dispose removes the registration behind this token. Idempotent.
func (s *Subscription) Dispose() {
	if s == nil || !s.disposed.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Disposed reports whether Dispose has been called.
func (s *Subscription) Disposed() bool {
	return s != nil && s.disposed.Load()
}

// subscriber is one entry on a cell's unified notification channel.
// All external subscriber shapes adapt to this (old, new) form.
type subscriber struct {
	id     uint64
	notify func(old, new any)
}

// cellBase provides type-erased subscriber and dependent management.
// It is embedded in Cell[T] and Computed[T] to share subscription logic.
type cellBase struct {
	id uint64

	// mu protects subs and deps.
	mu sync.RWMutex

	// subs are the unified-channel subscribers, in insertion order.
	subs []subscriber

	// deps are subscriptions owned by this cell (created by derived or
	// combinator chains); disposed in reverse order when the cell disposes.
	deps []*Subscription

	// broadcast, when set, runs after the direct subscribers on every
	// notification. The property store wires it to publish a generic change
	// event for registered cells.
	broadcast func(old, new any)

	sched  Scheduler
	logger *slog.Logger
}

// Option configures a cell at construction time.
type Option func(*cellBase)

// WithScheduler marshals the cell's notifications onto sched's context when
// the mutating goroutine is not already on it. Without a scheduler the cell
// notifies inline on the mutating goroutine.
func WithScheduler(sched Scheduler) Option {
	return func(b *cellBase) {
		b.sched = sched
	}
}

// WithLogger sets the logger used to report subscriber panics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *cellBase) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func (b *cellBase) init(opts ...Option) {
	b.id = nextID()
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
}

// addSubscriber appends fn to the unified channel and returns its token.
func (b *cellBase) addSubscriber(fn func(old, new any)) *Subscription {
	if fn == nil {
		return &Subscription{id: nextID()}
	}
	id := nextID()
	sub := &Subscription{id: id, cancel: func() { b.removeSubscriber(id) }}

	b.mu.Lock()
	b.subs = append(b.subs, subscriber{id: id, notify: fn})
	b.mu.Unlock()

	return sub
}

// removeSubscriber removes the entry with the given id, preserving the
// insertion order of the remaining subscribers.
func (b *cellBase) removeSubscriber(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// addDependent records a subscription owned by this cell.
func (b *cellBase) addDependent(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	b.deps = append(b.deps, sub)
	b.mu.Unlock()
}

func (b *cellBase) setBroadcast(fn func(old, new any)) {
	b.mu.Lock()
	b.broadcast = fn
	b.mu.Unlock()
}

// fanout notifies all subscribers of an (old, new) transition.
// The subscriber list is copied under the lock and iterated outside it, so a
// subscriber may dispose itself (or add others) during notification. Runs
// inline when already on the main context, otherwise marshals the whole
// snapshot through the scheduler.
func (b *cellBase) fanout(old, new any) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	bcast := b.broadcast
	b.mu.RUnlock()

	if len(subs) == 0 && bcast == nil {
		return
	}

	run := func() {
		for _, sub := range subs {
			b.invoke(sub, old, new)
		}
		if bcast != nil {
			b.invoke(subscriber{id: b.id, notify: bcast}, old, new)
		}
	}

	if b.sched == nil || b.sched.IsMain() {
		run()
		return
	}
	b.sched.Dispatch(run)
}

// invoke calls one subscriber with panic isolation: a panicking subscriber is
// reported and never prevents the rest of the snapshot from running.
func (b *cellBase) invoke(sub subscriber, old, new any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panic",
				"cell_id", b.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	sub.notify(old, new)
}

// dispose clears the subscriber list and cascades Dispose to owned dependent
// subscriptions in reverse registration order. No notification fires.
func (b *cellBase) dispose() {
	b.mu.Lock()
	deps := b.deps
	b.subs = nil
	b.deps = nil
	b.broadcast = nil
	b.mu.Unlock()

	for i := len(deps) - 1; i >= 0; i-- {
		deps[i].Dispose()
	}
}

// subscriberCount returns the current number of subscribers.
func (b *cellBase) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
