package convert

import (
	"fmt"
	"reflect"
)

// Converter converts boxed values from one concrete type to another.
type Converter interface {
	// Source returns the exact input type this converter accepts.
	Source() reflect.Type

	// Dest returns the exact output type this converter produces.
	Dest() reflect.Type

	// Convert transforms v. The input's runtime type must equal Source.
	Convert(v any) (any, error)
}

// Func adapts a typed conversion function into a Converter.
type Func[S, D any] struct {
	fn func(S) (D, error)
}

// NewFunc wraps fn as a Converter from S to D.
func NewFunc[S, D any](fn func(S) (D, error)) Func[S, D] {
	return Func[S, D]{fn: fn}
}

func (f Func[S, D]) Source() reflect.Type {
	return reflect.TypeOf((*S)(nil)).Elem()
}

func (f Func[S, D]) Dest() reflect.Type {
	return reflect.TypeOf((*D)(nil)).Elem()
}

func (f Func[S, D]) Convert(v any) (any, error) {
	sv, ok := v.(S)
	if !ok {
		return nil, &PairError{
			Src: f.Source(),
			Dst: f.Dest(),
			Err: fmt.Errorf("input is %T", v),
		}
	}
	d, err := f.fn(sv)
	if err != nil {
		return nil, &PairError{Src: f.Source(), Dst: f.Dest(), Err: err}
	}
	return d, nil
}
