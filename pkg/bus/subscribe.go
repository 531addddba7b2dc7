package bus

import (
	"reflect"
	"sync/atomic"
)

var subIDCounter uint64

func nextSubID() uint64 {
	return atomic.AddUint64(&subIDCounter, 1)
}

// entry is one registered handler in the bus registry. The stored invoke
// closure re-types the erased payload before calling the user handler.
type entry struct {
	id        uint64
	key       reflect.Type
	priority  int
	owner     any
	invoke    func(payload any, meta Metadata)
	cancelled atomic.Bool
}

// Subscription is the handle returned by Subscribe. Disposing it removes the
// handler from the bus; disposal is idempotent and safe from any goroutine.
type Subscription struct {
	id       uint64
	bus      *Bus
	disposed atomic.Bool
}

// ID returns the unique identifier of this subscription.
func (s *Subscription) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Dispose removes the subscription from the bus. Calling it more than once
// has no effect.
func (s *Subscription) Dispose() {
	if s == nil || !s.disposed.CompareAndSwap(false, true) {
		return
	}
	if s.bus != nil {
		s.bus.remove(s.id)
	}
}

// Disposed reports whether Dispose has been called.
func (s *Subscription) Disposed() bool {
	return s != nil && s.disposed.Load()
}

type subscribeConfig struct {
	priority int
	owner    any
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

// WithPriority sets the dispatch priority. Handlers with higher priority run
// before handlers with lower priority; the default is 0.
func WithPriority(p int) SubscribeOption {
	return func(c *subscribeConfig) {
		c.priority = p
	}
}

// WithOwner tags the subscription with an owning object so it can be removed
// later with Bus.UnsubscribeOwner. The owner must be comparable; pointers to
// the receiving object are the usual choice.
func WithOwner(owner any) SubscribeOption {
	return func(c *subscribeConfig) {
		c.owner = owner
	}
}

// Subscribe registers fn for events published with payload type T and returns
// a disposable handle. A nil fn returns an inert handle that receives nothing.
func Subscribe[T any](b *Bus, fn func(Event[T]), opts ...SubscribeOption) *Subscription {
	if b == nil || fn == nil {
		return &Subscription{id: nextSubID()}
	}
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &entry{
		id:       nextSubID(),
		key:      typeOf[T](),
		priority: cfg.priority,
		owner:    cfg.owner,
		invoke: func(payload any, meta Metadata) {
			// The comma-ok form tolerates a nil interface payload, which
			// asserts to the zero value of an interface-typed T.
			tv, _ := payload.(T)
			fn(Event[T]{Payload: tv, Meta: meta})
		},
	}
	b.add(e)
	return &Subscription{id: e.id, bus: b}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
