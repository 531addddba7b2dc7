package convert

import (
	"reflect"
	"strconv"
	"sync"
)

type pair struct {
	src, dst reflect.Type
}

// Registry is a thread-safe lookup table from exact (source, destination)
// type pairs to converters. The zero value is not usable; construct with New.
type Registry struct {
	mu    sync.RWMutex
	table map[pair]Converter
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithDefaults registers the stock strconv-backed conversions between int,
// int64, float64, bool and string, plus int/float64 crossovers.
func WithDefaults() Option {
	return func(r *Registry) {
		registerDefaults(r)
	}
}

// New constructs a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{table: make(map[pair]Converter)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c under its (source, destination) pair. Registering a pair
// twice fails with ErrDuplicate; replacing a conversion is an explicit
// Unregister followed by Register.
func (r *Registry) Register(c Converter) error {
	if c == nil {
		return nil
	}
	key := pair{src: c.Source(), dst: c.Dest()}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.table[key]; exists {
		return &PairError{Src: key.src, Dst: key.dst, Err: ErrDuplicate}
	}
	r.table[key] = c
	return nil
}

// Unregister removes the converter for the exact pair and reports whether
// one was registered.
func (r *Registry) Unregister(src, dst reflect.Type) bool {
	key := pair{src: src, dst: dst}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.table[key]; !ok {
		return false
	}
	delete(r.table, key)
	return true
}

// Find looks up the converter for the exact (src, dst) pair. There is no
// inheritance or coercion fallback; absence is an explicit miss.
func (r *Registry) Find(src, dst reflect.Type) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.table[pair{src: src, dst: dst}]
	return c, ok
}

// Convert transforms v into dst using the converter registered for
// (typeof v, dst), failing with ErrNoConverter when the pair is unregistered.
func (r *Registry) Convert(v any, dst reflect.Type) (any, error) {
	src := reflect.TypeOf(v)
	c, ok := r.Find(src, dst)
	if !ok {
		return nil, &PairError{Src: src, Dst: dst, Err: ErrNoConverter}
	}
	return c.Convert(v)
}

// Len returns the number of registered pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}

// Register adds a typed conversion function to the registry.
func Register[S, D any](r *Registry, fn func(S) (D, error)) error {
	return r.Register(NewFunc(fn))
}

// To converts v to D through the registry, failing with ErrNoConverter when
// the (typeof v, D) pair is unregistered.
func To[D any](r *Registry, v any) (D, error) {
	var zero D
	out, err := r.Convert(v, reflect.TypeOf((*D)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return out.(D), nil
}

func registerDefaults(r *Registry) {
	Register(r, func(v int) (string, error) { return strconv.Itoa(v), nil })
	Register(r, func(v string) (int, error) { return strconv.Atoi(v) })
	Register(r, func(v int64) (string, error) { return strconv.FormatInt(v, 10), nil })
	Register(r, func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) })
	Register(r, func(v float64) (string, error) {
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	})
	Register(r, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
	Register(r, func(v bool) (string, error) { return strconv.FormatBool(v), nil })
	Register(r, func(v string) (bool, error) { return strconv.ParseBool(v) })
	Register(r, func(v int) (float64, error) { return float64(v), nil })
	Register(r, func(v float64) (int, error) { return int(v), nil })
}
