package convert

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"testing"
)

func TestRegisterAndFind(t *testing.T) {
	r := New()
	if err := Register(r, func(v int) (string, error) {
		return strconv.Itoa(v), nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, ok := r.Find(reflect.TypeOf(0), reflect.TypeOf(""))
	if !ok {
		t.Fatal("expected registered pair to be found")
	}
	out, err := c.Convert(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "42" {
		t.Errorf("expected %q, got %q", "42", out)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 pair, got %d", r.Len())
	}
}

func TestExactPairOnly(t *testing.T) {
	r := New()
	Register(r, func(v int) (string, error) { return strconv.Itoa(v), nil })

	// int32 never matches an int converter; lookup is exact, not coercing.
	if _, ok := r.Find(reflect.TypeOf(int32(0)), reflect.TypeOf("")); ok {
		t.Error("expected no match for int32 source")
	}
	if _, ok := r.Find(reflect.TypeOf(0), reflect.TypeOf([]byte(nil))); ok {
		t.Error("expected no match for []byte destination")
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := New()
	Register(r, func(v int) (string, error) { return "", nil })

	err := Register(r, func(v int) (string, error) { return "", nil })
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	if !r.Unregister(reflect.TypeOf(0), reflect.TypeOf("")) {
		t.Error("expected unregister to remove the pair")
	}
	if err := Register(r, func(v int) (string, error) { return "", nil }); err != nil {
		t.Errorf("expected re-registration after unregister, got %v", err)
	}
}

func TestConvertMiss(t *testing.T) {
	r := New()
	_, err := r.Convert(42, reflect.TypeOf(""))
	if !errors.Is(err, ErrNoConverter) {
		t.Errorf("expected ErrNoConverter, got %v", err)
	}
	var pe *PairError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PairError, got %v", err)
	}
	if pe.Src != reflect.TypeOf(0) || pe.Dst != reflect.TypeOf("") {
		t.Errorf("expected pair (int, string), got (%v, %v)", pe.Src, pe.Dst)
	}
}

func TestTo(t *testing.T) {
	r := New(WithDefaults())

	s, err := To[string](r, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "42" {
		t.Errorf("expected %q, got %q", "42", s)
	}

	n, err := To[int](r, "17")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 17 {
		t.Errorf("expected 17, got %d", n)
	}

	if _, err := To[int](r, "not a number"); err == nil {
		t.Error("expected parse failure to surface")
	}
}

func TestDefaults(t *testing.T) {
	r := New(WithDefaults())

	cases := []struct {
		in   any
		dst  reflect.Type
		want any
	}{
		{42, reflect.TypeOf(""), "42"},
		{int64(7), reflect.TypeOf(""), "7"},
		{2.5, reflect.TypeOf(""), "2.5"},
		{true, reflect.TypeOf(""), "true"},
		{"9", reflect.TypeOf(int64(0)), int64(9)},
		{"false", reflect.TypeOf(false), false},
		{"0.5", reflect.TypeOf(0.0), 0.5},
		{3, reflect.TypeOf(0.0), 3.0},
		{2.9, reflect.TypeOf(0), 2},
	}
	for _, tc := range cases {
		got, err := r.Convert(tc.in, tc.dst)
		if err != nil {
			t.Errorf("convert %v to %v: unexpected error: %v", tc.in, tc.dst, err)
			continue
		}
		if got != tc.want {
			t.Errorf("convert %v to %v: expected %v, got %v", tc.in, tc.dst, tc.want, got)
		}
	}
}

func TestFuncInputMismatch(t *testing.T) {
	c := NewFunc(func(v int) (string, error) { return strconv.Itoa(v), nil })

	_, err := c.Convert("not an int")
	if err == nil {
		t.Fatal("expected input mismatch error")
	}
	var pe *PairError
	if !errors.As(err, &pe) {
		t.Errorf("expected PairError, got %v", err)
	}
}

func TestConversionErrorWrapped(t *testing.T) {
	boom := fmt.Errorf("boom")
	c := NewFunc(func(v int) (string, error) { return "", boom })

	_, err := c.Convert(1)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped conversion error, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New(WithDefaults())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			type local struct{ v int }
			Register(r, func(v local) (int, error) { return v.v, nil })
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := To[string](r, j); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
