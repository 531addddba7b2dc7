package store

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/weft-dev/weft/pkg/bus"
	"github.com/weft-dev/weft/pkg/weft"
)

// eventSource tags bus metadata on events the store publishes.
const eventSource = "store"

type record struct {
	cell       weft.AnyCell
	persistent bool
}

type deferredEntry struct {
	id uint64
	fn func(cell weft.AnyCell)
}

// Store is the keyed property registry. The zero value is not usable;
// construct with New. All methods are safe for concurrent use.
type Store struct {
	// mu protects props, keys and deferred. Registration and deferred
	// resolution for a key happen under one critical section, so a concurrent
	// SubscribeDeferred either sees the record or is queued before the pop:
	// no lost wakeups, no double fires.
	mu       sync.RWMutex
	props    map[string]record
	keys     map[uint64]string
	deferred map[string][]deferredEntry

	deferredSeq atomic.Uint64

	b      *bus.Bus
	sched  weft.Scheduler
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBus wires the store to an event bus. Registered cells then announce
// value changes as PropertyChanged events, and registration lifecycle as
// PropertyRegistered and PropertyUnregistered events.
func WithBus(b *bus.Bus) Option {
	return func(s *Store) {
		s.b = b
	}
}

// WithScheduler is applied to cells the store creates through GetOrCreate,
// marshalling their notifications onto the given execution context.
func WithScheduler(sched weft.Scheduler) Option {
	return func(s *Store) {
		s.sched = sched
	}
}

// WithLogger sets the logger used to report deferred-callback panics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		props:    make(map[string]record),
		keys:     make(map[uint64]string),
		deferred: make(map[string][]deferredEntry),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register binds key to cell, replacing any previous record for the key. The
// replaced cell stops announcing changes but is otherwise untouched. Pending
// deferred subscriptions on the key resolve exactly once, after the
// PropertyRegistered event is published.
func (s *Store) Register(key string, cell weft.AnyCell, persistent bool) {
	if cell == nil {
		return
	}

	s.mu.Lock()
	pending := s.registerLocked(key, cell, persistent)
	s.mu.Unlock()

	s.announceRegistered(key, cell, persistent, pending)
}

// registerLocked installs the record and pops the key's deferred list.
// Callers hold s.mu and run announceRegistered after unlocking.
func (s *Store) registerLocked(key string, cell weft.AnyCell, persistent bool) []deferredEntry {
	if old, ok := s.props[key]; ok {
		old.cell.SetBroadcast(nil)
		delete(s.keys, old.cell.ID())
	}
	s.props[key] = record{cell: cell, persistent: persistent}
	s.keys[cell.ID()] = key
	cell.SetBroadcast(func(old, new any) {
		s.publishChanged(cell, old, new)
	})

	pending := s.deferred[key]
	delete(s.deferred, key)
	return pending
}

func (s *Store) announceRegistered(key string, cell weft.AnyCell, persistent bool, pending []deferredEntry) {
	if s.b != nil {
		bus.Publish(s.b, PropertyRegistered{
			Key:        key,
			Persistent: persistent,
			Type:       cell.Type(),
		}, bus.WithSource(eventSource))
	}
	for _, d := range pending {
		s.resolve(key, d, cell)
	}
}

// publishChanged runs as a cell's broadcast hook, after the cell's direct
// subscribers. The key is resolved at notification time so a cell moved to
// another key tags its events correctly.
func (s *Store) publishChanged(cell weft.AnyCell, old, new any) {
	if s.b == nil {
		return
	}
	key, ok := s.KeyOf(cell)
	if !ok {
		return
	}
	bus.Publish(s.b, PropertyChanged{
		Key:  key,
		Old:  old,
		New:  new,
		Type: cell.Type(),
	}, bus.WithSource(eventSource))
}

// resolve invokes one deferred callback with panic isolation.
func (s *Store) resolve(key string, d deferredEntry, cell weft.AnyCell) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("deferred subscription panic",
				"key", key,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	d.fn(cell)
}

// Get returns the cell registered under key, or false when absent.
func (s *Store) Get(key string) (weft.AnyCell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.props[key]
	if !ok {
		return nil, false
	}
	return rec.cell, true
}

// GetOrCreate returns the mutable cell registered under key, creating and
// registering a non-persistent cell holding def when the key is absent.
// Creation is atomic: two concurrent calls for the same key return the same
// instance. An existing property of a different element type, or a computed
// property, fails with a type mismatch.
func GetOrCreate[T any](s *Store, key string, def T) (*weft.Cell[T], error) {
	s.mu.Lock()
	if rec, ok := s.props[key]; ok {
		s.mu.Unlock()
		cell, ok := rec.cell.(*weft.Cell[T])
		if !ok {
			return nil, mismatch[T](key, rec.cell, "mutable")
		}
		return cell, nil
	}

	opts := []weft.Option{weft.WithLogger(s.logger)}
	if s.sched != nil {
		opts = append(opts, weft.WithScheduler(s.sched))
	}
	cell := weft.NewCell(def, opts...)
	pending := s.registerLocked(key, cell, false)
	s.mu.Unlock()

	s.announceRegistered(key, cell, false, pending)
	return cell, nil
}

// Cell returns the mutable cell of element type T registered under key.
// A missing key fails with ErrNotFound; a property of another element type,
// or a computed property, fails with a type mismatch.
func Cell[T any](s *Store, key string) (*weft.Cell[T], error) {
	rec, ok := s.Get(key)
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	cell, ok := rec.(*weft.Cell[T])
	if !ok {
		return nil, mismatch[T](key, rec, "mutable")
	}
	return cell, nil
}

// Computed returns the computed cell of element type T registered under key.
func Computed[T any](s *Store, key string) (*weft.Computed[T], error) {
	rec, ok := s.Get(key)
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	cell, ok := rec.(*weft.Computed[T])
	if !ok {
		return nil, mismatch[T](key, rec, "computed")
	}
	return cell, nil
}

// mismatch builds the typed-lookup failure: a TypeError when the element
// types differ, or a kind complaint when the types match but the property is
// the wrong cell variety (mutable vs computed).
func mismatch[T any](key string, got weft.AnyCell, wantKind string) error {
	want := reflect.TypeOf((*T)(nil)).Elem()
	if got.Type() == want {
		return fmt.Errorf("store: property %q is not a %s cell: %w", key, wantKind, weft.ErrTypeMismatch)
	}
	return fmt.Errorf("store: property %q: %w", key, &weft.TypeError{
		Want: want,
		Got:  got.Type(),
	})
}

// SubscribeDeferred arranges for fn to receive the cell registered under key.
// If the key is already registered, fn runs synchronously before the call
// returns. Otherwise it runs exactly once when a matching Register arrives.
// Disposing the returned token cancels a still-pending callback; after
// resolution disposal is a no-op.
func (s *Store) SubscribeDeferred(key string, fn func(cell weft.AnyCell)) *weft.Subscription {
	if fn == nil {
		return weft.NewSubscription(nil)
	}

	s.mu.Lock()
	if rec, ok := s.props[key]; ok {
		s.mu.Unlock()
		s.resolve(key, deferredEntry{fn: fn}, rec.cell)
		return weft.NewSubscription(nil)
	}
	id := s.deferredSeq.Add(1)
	s.deferred[key] = append(s.deferred[key], deferredEntry{id: id, fn: fn})
	s.mu.Unlock()

	return weft.NewSubscription(func() {
		s.cancelDeferred(key, id)
	})
}

func (s *Store) cancelDeferred(key string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.deferred[key]
	for i, d := range list {
		if d.id == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.deferred, key)
	} else {
		s.deferred[key] = list
	}
}

// Unregister removes the record for key and reports whether one existed.
// The cell stops announcing changes but is not disposed; callers own cell
// lifecycles.
func (s *Store) Unregister(key string) bool {
	s.mu.Lock()
	rec, ok := s.props[key]
	if ok {
		rec.cell.SetBroadcast(nil)
		delete(s.keys, rec.cell.ID())
		delete(s.props, key)
	}
	s.mu.Unlock()

	if ok && s.b != nil {
		bus.Publish(s.b, PropertyUnregistered{Key: key}, bus.WithSource(eventSource))
	}
	return ok
}

// ClearNonPersistent removes every record whose persistent flag is false and
// returns the number removed. Persistent records survive.
func (s *Store) ClearNonPersistent() int {
	s.mu.Lock()
	var removed []string
	for key, rec := range s.props {
		if rec.persistent {
			continue
		}
		rec.cell.SetBroadcast(nil)
		delete(s.keys, rec.cell.ID())
		delete(s.props, key)
		removed = append(removed, key)
	}
	s.mu.Unlock()

	if s.b != nil {
		for _, key := range removed {
			bus.Publish(s.b, PropertyUnregistered{Key: key}, bus.WithSource(eventSource))
		}
	}
	return len(removed)
}

// KeyOf returns the key cell is registered under, or false when the cell is
// not in the store.
func (s *Store) KeyOf(cell weft.AnyCell) (string, bool) {
	if cell == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[cell.ID()]
	return key, ok
}

// Keys returns all registered property keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.props))
	for key := range s.props {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of registered properties.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.props)
}

// PendingDeferred returns the number of deferred subscriptions still waiting
// for their key, across all keys.
func (s *Store) PendingDeferred() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.deferred {
		n += len(list)
	}
	return n
}
