package convert

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoConverter indicates an exact-pair lookup found nothing. Callers decide
// what absence means; the registry never coerces.
var ErrNoConverter = errors.New("convert: no converter registered")

// ErrDuplicate indicates a Register call for an already-registered pair.
var ErrDuplicate = errors.New("convert: converter already registered")

// PairError reports which (source, destination) pair an operation failed on.
type PairError struct {
	Src, Dst reflect.Type
	Err      error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("convert: %s to %s: %v", e.Src, e.Dst, e.Err)
}

func (e *PairError) Unwrap() error {
	return e.Err
}
