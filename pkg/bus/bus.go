package bus

import (
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
)

// Scheduler marshals event delivery onto a designated execution context.
// mainthread.Loop and mainthread.Sync both satisfy it.
type Scheduler interface {
	// IsMain reports whether the calling goroutine is the designated context.
	IsMain() bool

	// Dispatch queues fn for execution on the designated context.
	Dispatch(fn func())
}

// Observer sees every published event, type-erased, before any handler runs.
type Observer func(ev AnyEvent)

// ComposeObservers fans each published event out to several observers in
// order. The bus holds one observer slot; use this to install more than one.
func ComposeObservers(observers ...Observer) Observer {
	return func(ev AnyEvent) {
		for _, fn := range observers {
			if fn != nil {
				fn(ev)
			}
		}
	}
}

// Bus is a thread-safe publish/subscribe event bus keyed by payload type.
// The zero value is not usable; construct with New.
type Bus struct {
	mu       sync.RWMutex
	subs     map[reflect.Type][]*entry
	byID     map[uint64]*entry
	observer Observer

	sched  Scheduler
	logger *slog.Logger

	published      atomic.Uint64
	delivered      atomic.Uint64
	handlerPanics  atomic.Uint64
	observerPanics atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler and observer panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithScheduler marshals deliveries onto the given execution context when the
// publisher is not already on it. Without a scheduler handlers run inline on
// the publishing goroutine.
func WithScheduler(s Scheduler) Option {
	return func(b *Bus) {
		b.sched = s
	}
}

// WithObserver installs the global observer hook at construction time.
func WithObserver(fn Observer) Option {
	return func(b *Bus) {
		b.observer = fn
	}
}

// New constructs an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[reflect.Type][]*entry),
		byID:   make(map[uint64]*entry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetObserver replaces the global observer hook. Passing nil removes it.
func (b *Bus) SetObserver(fn Observer) {
	b.mu.Lock()
	b.observer = fn
	b.mu.Unlock()
}

// Publish stamps payload with fresh metadata and delivers it to every
// subscriber registered for type T, highest priority first. The returned
// metadata identifies the event for logging or correlation.
func Publish[T any](b *Bus, payload T, opts ...PublishOption) Metadata {
	var cfg publishConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	meta := newMetadata(cfg.source)
	if b != nil {
		b.publish(typeOf[T](), payload, meta)
	}
	return meta
}

type publishConfig struct {
	source string
}

// PublishOption configures a single publish call.
type PublishOption func(*publishConfig)

// WithSource stamps the event metadata with the publishing system's name.
func WithSource(source string) PublishOption {
	return func(c *publishConfig) {
		c.source = source
	}
}

func (b *Bus) publish(key reflect.Type, payload any, meta Metadata) {
	b.published.Add(1)

	b.mu.RLock()
	observer := b.observer
	snapshot := make([]*entry, len(b.subs[key]))
	copy(snapshot, b.subs[key])
	b.mu.RUnlock()

	if observer != nil {
		b.notifyObserver(observer, AnyEvent{Type: key, Payload: payload, Meta: meta})
	}
	if len(snapshot) == 0 {
		return
	}

	// Priority order is decided per publish from the snapshot. The stable
	// sort keeps registration order among equal priorities.
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].priority > snapshot[j].priority
	})

	run := func() {
		for _, e := range snapshot {
			if e.cancelled.Load() {
				continue
			}
			b.invokeEntry(e, payload, meta)
		}
	}
	if b.sched != nil && !b.sched.IsMain() {
		b.sched.Dispatch(run)
		return
	}
	run()
}

func (b *Bus) notifyObserver(observer Observer, ev AnyEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.observerPanics.Add(1)
			b.logger.Error("event observer panic",
				"event_type", ev.Type.String(),
				"event_id", ev.Meta.ID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	observer(ev)
}

func (b *Bus) invokeEntry(e *entry, payload any, meta Metadata) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			b.logger.Error("event handler panic",
				"event_type", e.key.String(),
				"event_id", meta.ID,
				"subscription_id", e.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	e.invoke(payload, meta)
	b.delivered.Add(1)
}

func (b *Bus) add(e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[e.key] = append(b.subs[e.key], e)
	b.byID[e.id] = e
}

func (b *Bus) remove(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.byID[id]
	if !ok {
		return false
	}
	e.cancelled.Store(true)
	delete(b.byID, id)
	b.removeFromList(e)
	return true
}

// removeFromList splices e out of its per-type list. Callers hold b.mu.
func (b *Bus) removeFromList(e *entry) {
	list := b.subs[e.key]
	for i, cur := range list {
		if cur.id == e.id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, e.key)
	} else {
		b.subs[e.key] = list
	}
}

// UnsubscribeOwner removes every subscription, across all event types, that
// was registered with WithOwner(owner). It returns the number removed.
func (b *Bus) UnsubscribeOwner(owner any) int {
	if owner == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, list := range b.subs {
		kept := make([]*entry, 0, len(list))
		for _, e := range list {
			if e.owner == owner {
				e.cancelled.Store(true)
				delete(b.byID, e.id)
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(b.subs, key)
		} else {
			b.subs[key] = kept
		}
	}
	return removed
}

// SubscriberCount returns the number of live subscriptions for type T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[typeOf[T]()])
}

// TotalSubscriberCount returns the number of live subscriptions across all
// event types.
func (b *Bus) TotalSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// Clear removes every subscription. Outstanding Subscription handles become
// no-ops.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.byID {
		e.cancelled.Store(true)
	}
	b.subs = make(map[reflect.Type][]*entry)
	b.byID = make(map[uint64]*entry)
}

// Stats is a point-in-time snapshot of bus activity counters.
type Stats struct {
	Published      uint64
	Delivered      uint64
	HandlerPanics  uint64
	ObserverPanics uint64
	Subscribers    int
}

// Stats returns a snapshot of the bus activity counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:      b.published.Load(),
		Delivered:      b.delivered.Load(),
		HandlerPanics:  b.handlerPanics.Load(),
		ObserverPanics: b.observerPanics.Load(),
		Subscribers:    b.TotalSubscriberCount(),
	}
}
