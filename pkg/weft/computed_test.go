package weft

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestComputedLazy(t *testing.T) {
	source := NewCell(2)

	var runs atomic.Int32
	total := NewComputed(func() int {
		runs.Add(1)
		return source.Get() * 10
	})

	// Construction does not compute
	if runs.Load() != 0 {
		t.Fatalf("expected 0 computations before first read, got %d", runs.Load())
	}

	// First read computes
	if total.Get() != 20 {
		t.Errorf("expected 20, got %d", total.Get())
	}
	if runs.Load() != 1 {
		t.Errorf("expected 1 computation, got %d", runs.Load())
	}

	// Clean re-reads serve the cache
	_ = total.Get()
	_ = total.Get()
	if runs.Load() != 1 {
		t.Errorf("clean reads should not recompute, got %d computations", runs.Load())
	}

	// Several invalidations collapse into one recomputation
	total.Invalidate()
	total.Invalidate()
	if runs.Load() != 1 {
		t.Errorf("invalidate should not recompute, got %d computations", runs.Load())
	}

	source.Set(3)
	if total.Get() != 20 {
		t.Errorf("expected stale 20 before invalidation, got %d", total.Get())
	}
}

func TestComputedNotifyOnChangeOnly(t *testing.T) {
	source := NewCell(5)
	even := NewComputed(func() bool {
		return source.Get()%2 == 0
	})

	// Seed the cache, then subscribe
	if even.Get() {
		t.Fatal("expected false for 5")
	}

	var got [][2]bool
	even.SubscribeChange(func(old, new bool) {
		got = append(got, [2]bool{old, new})
	})

	// Recompute to the same value: no notification
	source.Set(7)
	even.Invalidate()
	if even.Get() {
		t.Fatal("expected false for 7")
	}
	if len(got) != 0 {
		t.Errorf("unchanged recompute should not notify, got %d notifications", len(got))
	}

	// Recompute to a different value: exactly one notification
	source.Set(8)
	even.Invalidate()
	if !even.Get() {
		t.Fatal("expected true for 8")
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0][0] != false || got[0][1] != true {
		t.Errorf("expected notification (false, true), got (%v, %v)", got[0][0], got[0][1])
	}
}

func TestComputedFirstReadSeedsSilently(t *testing.T) {
	calls := 0
	c := NewComputed(func() int { return 42 })
	c.Subscribe(func(int) { calls++ })

	if c.Get() != 42 {
		t.Errorf("expected 42, got %d", c.Get())
	}
	if calls != 0 {
		t.Errorf("first read should seed without notifying, got %d calls", calls)
	}
}

func TestComputedRecompute(t *testing.T) {
	n := 1
	c := NewComputed(func() int { return n })

	if c.Get() != 1 {
		t.Fatalf("expected 1, got %d", c.Get())
	}

	var got [][2]int
	c.SubscribeChange(func(old, new int) {
		got = append(got, [2]int{old, new})
	})

	n = 9
	if v := c.Recompute(); v != 9 {
		t.Errorf("expected forced recompute to return 9, got %d", v)
	}
	if len(got) != 1 || got[0][0] != 1 || got[0][1] != 9 {
		t.Errorf("expected notification (1, 9), got %v", got)
	}

	// Forcing with an unchanged result does not notify
	if v := c.Recompute(); v != 9 {
		t.Errorf("expected 9, got %d", v)
	}
	if len(got) != 1 {
		t.Errorf("unchanged forced recompute should not notify, got %d notifications", len(got))
	}
}

func TestComputedReadOnly(t *testing.T) {
	c := NewComputed(func() int { return 1 })

	err := c.SetAny(2, false)
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if c.Get() != 1 {
		t.Errorf("value should be unchanged, got %d", c.Get())
	}
}

func TestComputedPanicPropagates(t *testing.T) {
	c := NewComputed(func() int { panic("compute failed") })

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected compute panic to reach the caller")
			}
		}()
		_ = c.Get()
	}()

	// The cell stays invalid; a later read retries and can succeed
	if c.valid.Load() {
		t.Error("cell should remain invalid after a failed computation")
	}
}

func TestComputedDispose(t *testing.T) {
	source := NewCell(1)
	derived := Map(source, func(n int) int { return n * 2 })

	if derived.Get() != 2 {
		t.Fatalf("expected 2, got %d", derived.Get())
	}

	derived.Dispose()

	// The source watch is gone: changes no longer invalidate
	source.Set(10)
	if derived.Get() != 2 {
		t.Errorf("disposed derived cell should keep its cached value, got %d", derived.Get())
	}
	if source.SubscriberCount() != 0 {
		t.Errorf("expected source to have 0 subscribers after dispose, got %d", source.SubscriberCount())
	}
}

func TestMapChain(t *testing.T) {
	base := NewCell(3)
	doubled := Map(base, func(n int) int { return n * 2 })
	labeled := Map(doubled, func(n int) string {
		if n > 10 {
			return "big"
		}
		return "small"
	})

	if labeled.Get() != "small" {
		t.Errorf("expected %q, got %q", "small", labeled.Get())
	}

	base.Set(6)
	if labeled.Get() != "big" {
		t.Errorf("expected %q after chained invalidation, got %q", "big", labeled.Get())
	}
}

func TestCombine2Sum(t *testing.T) {
	a := NewCell(2)
	b := NewCell(3)

	var runs atomic.Int32
	sum := Combine2(a, b, func(x, y int) int {
		runs.Add(1)
		return x + y
	})

	if sum.Get() != 5 {
		t.Fatalf("expected initial sum 5, got %d", sum.Get())
	}

	var got [][2]int
	sum.SubscribeChange(func(old, new int) {
		got = append(got, [2]int{old, new})
	})

	// Lazy: the source change invalidates but does not recompute
	a.Set(4)
	if runs.Load() != 1 {
		t.Errorf("expected no recomputation before read, got %d runs", runs.Load())
	}

	if sum.Get() != 7 {
		t.Errorf("expected sum 7 after read, got %d", sum.Get())
	}
	if runs.Load() != 2 {
		t.Errorf("expected exactly 2 runs, got %d", runs.Load())
	}
	if len(got) != 1 || got[0][0] != 5 || got[0][1] != 7 {
		t.Errorf("expected notification (5, 7), got %v", got)
	}
}

func TestCombine3(t *testing.T) {
	a := NewCell("a")
	b := NewCell("b")
	c := NewCell("c")

	joined := Combine3(a, b, c, func(x, y, z string) string {
		return x + y + z
	})

	if joined.Get() != "abc" {
		t.Errorf("expected %q, got %q", "abc", joined.Get())
	}

	b.Set("B")
	if joined.Get() != "aBc" {
		t.Errorf("expected %q, got %q", "aBc", joined.Get())
	}
}

func TestComputedConcurrentReads(t *testing.T) {
	source := NewCell(1)
	derived := Map(source, func(n int) int { return n + 1 })

	var wg sync.WaitGroup
	const numGoroutines = 100

	wg.Add(numGoroutines * 2)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = derived.Get()
			}
		}()
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				source.Set(id*100 + j)
			}
		}(i)
	}
	wg.Wait()

	// Settle and verify the final read is consistent
	want := source.Get() + 1
	derived.Invalidate()
	if derived.Get() != want {
		t.Errorf("expected %d, got %d", want, derived.Get())
	}
}
