package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/weft-dev/weft/pkg/bus"
	"github.com/weft-dev/weft/pkg/weft"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterAndGet(t *testing.T) {
	s := New()
	cell := weft.NewCell(100)
	s.Register("player.health", cell, false)

	got, ok := s.Get("player.health")
	if !ok {
		t.Fatal("expected registered property to be found")
	}
	if got.(*weft.Cell[int]) != cell {
		t.Error("expected lookup to return the registered instance")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("expected missing key to report absent")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 property, got %d", s.Len())
	}
}

func TestRegisterReplaces(t *testing.T) {
	s := New()
	first := weft.NewCell(1)
	second := weft.NewCell(2)

	s.Register("score", first, false)
	s.Register("score", second, false)

	got, _ := s.Get("score")
	if got.(*weft.Cell[int]) != second {
		t.Error("expected re-registration to replace the record")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 property after replace, got %d", s.Len())
	}
	if _, ok := s.KeyOf(first); ok {
		t.Error("expected replaced cell to lose its key")
	}
	if key, ok := s.KeyOf(second); !ok || key != "score" {
		t.Errorf("expected reverse lookup score, got %q (%v)", key, ok)
	}
}

func TestGetOrCreateSameInstance(t *testing.T) {
	s := New()
	c1, err := GetOrCreate(s, "score", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := GetOrCreate(s, "score", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c1 != c2 {
		t.Error("expected both calls to return the identical instance")
	}
	if c2.Get() != 10 {
		t.Errorf("expected second default to be ignored, got %d", c2.Get())
	}
}

func TestGetOrCreateTypeMismatch(t *testing.T) {
	s := New()
	s.Register("name", weft.NewCell("ada"), false)

	_, err := GetOrCreate(s, "name", 0)
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	if !errors.Is(err, weft.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	var typeErr *weft.TypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected TypeError, got %v", err)
	}
	if typeErr.Want != reflect.TypeOf(0) || typeErr.Got != reflect.TypeOf("") {
		t.Errorf("expected want int got string, got want %v got %v", typeErr.Want, typeErr.Got)
	}
}

func TestGetOrCreateOnComputed(t *testing.T) {
	s := New()
	s.Register("sum", weft.NewComputed(func() int { return 5 }), false)

	_, err := GetOrCreate(s, "sum", 0)
	if err == nil {
		t.Fatal("expected mismatch on computed property")
	}
	if !errors.Is(err, weft.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestTypedLookup(t *testing.T) {
	s := New()
	s.Register("health", weft.NewCell(100), false)
	s.Register("sum", weft.NewComputed(func() int { return 5 }), false)

	cell, err := Cell[int](s, "health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cell.Get() != 100 {
		t.Errorf("expected 100, got %d", cell.Get())
	}

	if _, err := Cell[int](s, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	_, err = Cell[int](s, "missing")
	if !errors.As(err, &nf) || nf.Key != "missing" {
		t.Errorf("expected NotFoundError for missing, got %v", err)
	}

	if _, err := Cell[string](s, "health"); !errors.Is(err, weft.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := Cell[int](s, "sum"); !errors.Is(err, weft.ErrTypeMismatch) {
		t.Errorf("expected mismatch reading computed as mutable, got %v", err)
	}

	sum, err := Computed[int](s, "sum")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Get() != 5 {
		t.Errorf("expected 5, got %d", sum.Get())
	}
	if _, err := Computed[int](s, "health"); !errors.Is(err, weft.ErrTypeMismatch) {
		t.Errorf("expected mismatch reading mutable as computed, got %v", err)
	}
}

func TestSubscribeDeferredBeforeRegister(t *testing.T) {
	s := New()
	calls := 0
	var received weft.AnyCell
	s.SubscribeDeferred("player.health", func(cell weft.AnyCell) {
		calls++
		received = cell
	})

	if calls != 0 {
		t.Fatalf("expected no invocation before registration, got %d", calls)
	}
	if s.PendingDeferred() != 1 {
		t.Fatalf("expected 1 pending deferred, got %d", s.PendingDeferred())
	}

	cell := weft.NewCell(100)
	s.Register("player.health", cell, false)

	if calls != 1 {
		t.Fatalf("expected exactly one invocation after registration, got %d", calls)
	}
	if received.(*weft.Cell[int]) != cell {
		t.Error("expected callback to receive the registered cell")
	}

	// Re-registration must not fire the already-resolved callback again.
	s.Register("player.health", weft.NewCell(50), false)
	if calls != 1 {
		t.Errorf("expected no second invocation, got %d", calls)
	}
	if s.PendingDeferred() != 0 {
		t.Errorf("expected no pending deferred, got %d", s.PendingDeferred())
	}
}

func TestSubscribeDeferredWhenPresent(t *testing.T) {
	s := New()
	cell := weft.NewCell(7)
	s.Register("score", cell, false)

	calls := 0
	s.SubscribeDeferred("score", func(got weft.AnyCell) {
		calls++
		if got.(*weft.Cell[int]) != cell {
			t.Error("expected synchronous callback with the registered cell")
		}
	})

	if calls != 1 {
		t.Errorf("expected synchronous invocation, got %d calls", calls)
	}
}

func TestSubscribeDeferredCancel(t *testing.T) {
	s := New()
	calls := 0
	sub := s.SubscribeDeferred("late", func(weft.AnyCell) { calls++ })

	sub.Dispose()
	s.Register("late", weft.NewCell(1), false)

	if calls != 0 {
		t.Errorf("expected cancelled deferred not to fire, got %d", calls)
	}
	if s.PendingDeferred() != 0 {
		t.Errorf("expected no pending deferred after cancel, got %d", s.PendingDeferred())
	}
}

func TestSubscribeDeferredExactlyOnceUnderRace(t *testing.T) {
	s := New()
	const subscribers = 100
	var calls atomic.Uint64

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < subscribers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.SubscribeDeferred("contested", func(weft.AnyCell) {
				calls.Add(1)
			})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		s.Register("contested", weft.NewCell(1), false)
	}()

	close(start)
	wg.Wait()

	if got := calls.Load(); got != subscribers {
		t.Errorf("expected %d invocations exactly, got %d", subscribers, got)
	}
	if s.PendingDeferred() != 0 {
		t.Errorf("expected no pending deferred, got %d", s.PendingDeferred())
	}
}

func TestDeferredPanicIsolated(t *testing.T) {
	s := New(WithLogger(discardLogger()))
	calls := 0
	s.SubscribeDeferred("k", func(weft.AnyCell) { panic("deferred failure") })
	s.SubscribeDeferred("k", func(weft.AnyCell) { calls++ })

	s.Register("k", weft.NewCell(1), false)

	if calls != 1 {
		t.Errorf("expected panicking callback not to block the next, got %d", calls)
	}
}

func TestUnregister(t *testing.T) {
	s := New()
	cell := weft.NewCell(1)
	s.Register("score", cell, false)

	if !s.Unregister("score") {
		t.Error("expected removal of existing key to report true")
	}
	if s.Unregister("score") {
		t.Error("expected removal of missing key to report false")
	}
	if _, ok := s.Get("score"); ok {
		t.Error("expected key to be gone")
	}
	if _, ok := s.KeyOf(cell); ok {
		t.Error("expected reverse entry to be gone")
	}
}

func TestClearNonPersistent(t *testing.T) {
	s := New()
	s.Register("session.score", weft.NewCell(1), false)
	s.Register("session.combo", weft.NewCell(2), false)
	s.Register("profile.name", weft.NewCell("ada"), true)

	if got := s.ClearNonPersistent(); got != 2 {
		t.Errorf("expected 2 removals, got %d", got)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 surviving property, got %d", s.Len())
	}
	if _, ok := s.Get("profile.name"); !ok {
		t.Error("expected persistent property to survive")
	}
}

func TestKeys(t *testing.T) {
	s := New()
	s.Register("b", weft.NewCell(2), false)
	s.Register("a", weft.NewCell(1), false)
	s.Register("c", weft.NewCell(3), false)

	keys := s.Keys()
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected sorted keys %v, got %v", want, keys)
		}
	}
}

func TestChangeEventsPublished(t *testing.T) {
	b := bus.New()
	s := New(WithBus(b))

	var events []PropertyChanged
	bus.Subscribe(b, func(ev bus.Event[PropertyChanged]) {
		events = append(events, ev.Payload)
	})

	cell := weft.NewCell(100)
	s.Register("player.health", cell, false)
	cell.Set(80)

	if len(events) != 1 {
		t.Fatalf("expected 1 change event, got %d", len(events))
	}
	ev := events[0]
	if ev.Key != "player.health" {
		t.Errorf("expected key player.health, got %q", ev.Key)
	}
	if ev.Old != 100 || ev.New != 80 {
		t.Errorf("expected transition (100, 80), got (%v, %v)", ev.Old, ev.New)
	}
	if ev.Type != reflect.TypeOf(0) {
		t.Errorf("expected element type int, got %v", ev.Type)
	}

	// Direct subscribers fire before the bus announcement.
	var order []string
	cell.Subscribe(func(int) { order = append(order, "direct") })
	busSub := bus.Subscribe(b, func(bus.Event[PropertyChanged]) {
		order = append(order, "bus")
	})
	cell.Set(60)
	if len(order) != 2 || order[0] != "direct" || order[1] != "bus" {
		t.Errorf("expected [direct bus], got %v", order)
	}
	busSub.Dispose()

	// Unregistered cells stop announcing.
	s.Unregister("player.health")
	cell.Set(40)
	if len(events) != 2 {
		t.Errorf("expected no change events after unregister, got %d", len(events))
	}
}

func TestReplacedCellStopsAnnouncing(t *testing.T) {
	b := bus.New()
	s := New(WithBus(b))
	changes := 0
	bus.Subscribe(b, func(bus.Event[PropertyChanged]) { changes++ })

	old := weft.NewCell(1)
	s.Register("score", old, false)
	s.Register("score", weft.NewCell(2), false)

	old.Set(9)
	if changes != 0 {
		t.Errorf("expected replaced cell to stop announcing, got %d events", changes)
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	b := bus.New()
	s := New(WithBus(b))

	var registered []PropertyRegistered
	var unregistered []PropertyUnregistered
	bus.Subscribe(b, func(ev bus.Event[PropertyRegistered]) {
		registered = append(registered, ev.Payload)
	})
	bus.Subscribe(b, func(ev bus.Event[PropertyUnregistered]) {
		unregistered = append(unregistered, ev.Payload)
	})

	s.Register("profile.name", weft.NewCell("ada"), true)
	if _, err := GetOrCreate(s, "session.score", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(registered) != 2 {
		t.Fatalf("expected 2 registered events, got %d", len(registered))
	}
	if registered[0].Key != "profile.name" || !registered[0].Persistent {
		t.Errorf("unexpected first registered event: %+v", registered[0])
	}
	if registered[1].Key != "session.score" || registered[1].Persistent {
		t.Errorf("unexpected second registered event: %+v", registered[1])
	}
	if registered[0].Type != reflect.TypeOf("") {
		t.Errorf("expected string element type, got %v", registered[0].Type)
	}

	s.Unregister("profile.name")
	s.ClearNonPersistent()
	if len(unregistered) != 2 {
		t.Fatalf("expected 2 unregistered events, got %d", len(unregistered))
	}
}

func TestDeferredResolvesAfterRegisteredEvent(t *testing.T) {
	b := bus.New()
	s := New(WithBus(b))

	var order []string
	bus.Subscribe(b, func(bus.Event[PropertyRegistered]) {
		order = append(order, "registered")
	})
	s.SubscribeDeferred("k", func(weft.AnyCell) {
		order = append(order, "deferred")
	})

	s.Register("k", weft.NewCell(1), false)

	if len(order) != 2 || order[0] != "registered" || order[1] != "deferred" {
		t.Errorf("expected [registered deferred], got %v", order)
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	s := New()
	const goroutines = 100

	cells := make([]*weft.Cell[int], goroutines)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			cell, err := GetOrCreate(s, "contested", 42)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			cells[idx] = cell
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if cells[i] != cells[0] {
			t.Fatal("expected every racer to receive the identical instance")
		}
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 property, got %d", s.Len())
	}
}

func TestGetOrCreateAppliesStoreScheduler(t *testing.T) {
	sched := &stubScheduler{}
	s := New(WithScheduler(sched))

	cell, err := GetOrCreate(s, "score", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fired := 0
	cell.Subscribe(func(int) { fired++ })

	cell.Set(1)
	if fired != 0 {
		t.Fatal("expected off-main notification to be deferred")
	}
	sched.drain()
	if fired != 1 {
		t.Errorf("expected notification after drain, got %d", fired)
	}
}

type stubScheduler struct {
	mu     sync.Mutex
	queued []func()
}

func (s *stubScheduler) IsMain() bool {
	return false
}

func (s *stubScheduler) Dispatch(fn func()) {
	s.mu.Lock()
	s.queued = append(s.queued, fn)
	s.mu.Unlock()
}

func (s *stubScheduler) drain() {
	s.mu.Lock()
	batch := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

func TestRegisterNilCell(t *testing.T) {
	s := New()
	s.Register("k", nil, false)
	if s.Len() != 0 {
		t.Errorf("expected nil cell to be ignored, got %d properties", s.Len())
	}
}

func ExampleStore() {
	s := New()
	health, _ := GetOrCreate(s, "player.health", 100)
	health.SubscribeChange(func(old, new int) {
		fmt.Printf("health %d -> %d\n", old, new)
	})
	health.Set(80)
	// Output: health 100 -> 80
}
