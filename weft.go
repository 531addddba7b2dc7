// Package weft provides the public API for the weft reactive core.
//
// This is the recommended import for most applications:
//
//	import "github.com/weft-dev/weft"
//
// Usage:
//
//	core := weft.New()
//	health, _ := weft.GetOrCreate(core, "player.health", 100)
//	health.Subscribe(func(hp int) { hud.SetHealth(hp) })
//	health.Set(80)
package weft

import (
	"github.com/weft-dev/weft/pkg/bus"
	"github.com/weft-dev/weft/pkg/convert"
	"github.com/weft-dev/weft/pkg/store"
	coreweft "github.com/weft-dev/weft/pkg/weft"
)

// =============================================================================
// Reactive cells (re-export from pkg/weft)
// =============================================================================

// NewCell creates a mutable reactive cell with the given initial value.
//
// Example:
//
//	health := weft.NewCell(100)
//	health.SubscribeChange(func(old, new int) { ... })
//	health.Set(80)
func NewCell[T any](initial T, opts ...CellOption) *Cell[T] {
	return coreweft.NewCell(initial, opts...)
}

// NewComputed creates a read-only cell derived by a pure function,
// recomputed lazily when invalidated.
//
// Example:
//
//	total := weft.NewComputed(func() int {
//	    return a.Get() + b.Get()
//	})
func NewComputed[T any](compute func() T, opts ...CellOption) *Computed[T] {
	return coreweft.NewComputed(compute, opts...)
}

// Map derives a computed cell from one source cell.
func Map[S, R any](src Source[S], fn func(S) R, opts ...CellOption) *Computed[R] {
	return coreweft.Map(src, fn, opts...)
}

// Combine2 derives a computed cell from two source cells.
func Combine2[A, B, R any](a Source[A], b Source[B], fn func(A, B) R, opts ...CellOption) *Computed[R] {
	return coreweft.Combine2(a, b, fn, opts...)
}

// Combine3 derives a computed cell from three source cells.
func Combine3[A, B, C, R any](a Source[A], b Source[B], c Source[C], fn func(A, B, C) R, opts ...CellOption) *Computed[R] {
	return coreweft.Combine3(a, b, c, fn, opts...)
}

// Cell type aliases
type Cell[T any] = coreweft.Cell[T]
type Computed[T any] = coreweft.Computed[T]
type Source[T any] = coreweft.Source[T]
type AnyCell = coreweft.AnyCell
type Subscription = coreweft.Subscription
type Scheduler = coreweft.Scheduler

// CellOption configures a cell at construction time.
type CellOption = coreweft.Option

// Cell options
var WithCellScheduler = coreweft.WithScheduler
var WithCellLogger = coreweft.WithLogger

// =============================================================================
// Errors (re-export from pkg/weft and pkg/store)
// =============================================================================

var ErrTypeMismatch = coreweft.ErrTypeMismatch
var ErrReadOnly = coreweft.ErrReadOnly
var ErrNotFound = store.ErrNotFound

type TypeError = coreweft.TypeError
type NotFoundError = store.NotFoundError

// =============================================================================
// Event bus (re-export from pkg/bus)
// =============================================================================

// Event is a typed event as seen by a subscriber.
type Event[T any] = bus.Event[T]

// Metadata is the envelope stamped onto every published event.
type Metadata = bus.Metadata

// AnyEvent is the type-erased form handed to the global observer hook.
type AnyEvent = bus.AnyEvent

// EventSubscription is the disposal token for a bus subscription.
type EventSubscription = bus.Subscription

// Observer sees every published event before any handler runs.
type Observer = bus.Observer

// Subscribe options
var WithPriority = bus.WithPriority
var WithOwner = bus.WithOwner

// Publish options
var WithSource = bus.WithSource

// Publish stamps payload with fresh metadata and delivers it through the
// core's bus to every subscriber of type T, highest priority first.
func Publish[T any](c *Core, payload T, opts ...bus.PublishOption) Metadata {
	return bus.Publish(c.Bus, payload, opts...)
}

// Subscribe registers a typed event handler on the core's bus.
//
// Example:
//
//	weft.Subscribe(core, func(ev weft.Event[store.PropertyChanged]) {
//	    log.Printf("%s: %v -> %v", ev.Payload.Key, ev.Payload.Old, ev.Payload.New)
//	}, weft.WithPriority(10))
func Subscribe[T any](c *Core, fn func(Event[T]), opts ...bus.SubscribeOption) *EventSubscription {
	return bus.Subscribe(c.Bus, fn, opts...)
}

// =============================================================================
// Property store (re-export from pkg/store)
// =============================================================================

// PropertyChanged is the generic change event registered cells publish.
type PropertyChanged = store.PropertyChanged

// PropertyRegistered announces a key being bound to a cell.
type PropertyRegistered = store.PropertyRegistered

// PropertyUnregistered announces a key being removed.
type PropertyUnregistered = store.PropertyUnregistered

// GetOrCreate returns the cell registered under key in the core's store,
// creating it with the given default when absent.
func GetOrCreate[T any](c *Core, key string, def T) (*Cell[T], error) {
	return store.GetOrCreate(c.Store, key, def)
}

// Property returns the mutable cell of element type T registered under key.
func Property[T any](c *Core, key string) (*Cell[T], error) {
	return store.Cell[T](c.Store, key)
}

// ComputedProperty returns the computed cell of element type T registered
// under key.
func ComputedProperty[T any](c *Core, key string) (*Computed[T], error) {
	return store.Computed[T](c.Store, key)
}

// =============================================================================
// Conversion (re-export from pkg/convert)
// =============================================================================

// Converter converts boxed values between two exact types.
type Converter = convert.Converter

// RegisterConverter adds a typed conversion function to the core's registry.
func RegisterConverter[S, D any](c *Core, fn func(S) (D, error)) error {
	return convert.Register(c.Converters, fn)
}

// ConvertTo converts v to D through the core's registry.
func ConvertTo[D any](c *Core, v any) (D, error) {
	return convert.To[D](c.Converters, v)
}

// =============================================================================
// Bindings
// =============================================================================

// Binding is the contract for external consumers, such as UI widgets, that
// attach to a cell: Activate receives the cell and is expected to subscribe
// (and push edits back through SetAny); Deactivate must dispose whatever
// subscriptions Activate created.
type Binding interface {
	Activate(cell AnyCell)
	Deactivate()
}

// Bind activates binding against the property registered under key in the
// core's store, deferring activation until the key exists. The returned
// token cancels a still-pending activation; it does not call Deactivate.
func Bind(c *Core, key string, binding Binding) *Subscription {
	if binding == nil {
		return nil
	}
	return c.Store.SubscribeDeferred(key, func(cell AnyCell) {
		binding.Activate(cell)
	})
}
