package weft

// Source is the read-and-watch surface shared by Cell[T] and Computed[T].
// Combinators accept it so derived cells can chain off either kind.
type Source[T any] interface {
	Get() T
	Watch(fn func(old, new any)) *Subscription
}

// Map derives a computed cell by applying fn to src's value.
// The derived cell owns its source subscription: disposing it unhooks src.
// Like every computed cell it is pull-based — a source change invalidates,
// and the mapped value is produced on the next Get.
func Map[S, R any](src Source[S], fn func(S) R, opts ...Option) *Computed[R] {
	m := NewComputed(func() R {
		return fn(src.Get())
	}, opts...)
	m.AddDependent(src.Watch(func(_, _ any) {
		m.Invalidate()
	}))
	return m
}

// Combine2 derives a computed cell from two sources.
func Combine2[A, B, R any](a Source[A], b Source[B], fn func(A, B) R, opts ...Option) *Computed[R] {
	m := NewComputed(func() R {
		return fn(a.Get(), b.Get())
	}, opts...)
	invalidate := func(_, _ any) {
		m.Invalidate()
	}
	m.AddDependent(a.Watch(invalidate))
	m.AddDependent(b.Watch(invalidate))
	return m
}

// Combine3 derives a computed cell from three sources.
func Combine3[A, B, C, R any](a Source[A], b Source[B], c Source[C], fn func(A, B, C) R, opts ...Option) *Computed[R] {
	m := NewComputed(func() R {
		return fn(a.Get(), b.Get(), c.Get())
	}, opts...)
	invalidate := func(_, _ any) {
		m.Invalidate()
	}
	m.AddDependent(a.Watch(invalidate))
	m.AddDependent(b.Watch(invalidate))
	m.AddDependent(c.Watch(invalidate))
	return m
}
