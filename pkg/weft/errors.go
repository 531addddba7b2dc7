package weft

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrTypeMismatch is returned when a boxed write carries a value whose
// runtime type does not match the cell's element type. The write is dropped
// and no notification fires.
var ErrTypeMismatch = errors.New("weft: value type mismatch")

// ErrReadOnly is returned when a write is attempted on a computed cell.
// Computed cells derive their value from a function and cannot be set.
var ErrReadOnly = errors.New("weft: computed cell is read-only")

// TypeError reports the element type a cell holds and the runtime type a
// caller supplied. It unwraps to ErrTypeMismatch.
type TypeError struct {
	Want reflect.Type
	Got  reflect.Type
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	got := "<nil>"
	if e.Got != nil {
		got = e.Got.String()
	}
	return fmt.Sprintf("weft: value type mismatch: cell holds %s, got %s", e.Want, got)
}

// Unwrap returns the sentinel error for errors.Is checks.
func (e *TypeError) Unwrap() error {
	return ErrTypeMismatch
}
