package store

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a typed lookup for a key with no registered property.
var ErrNotFound = errors.New("store: property not found")

// NotFoundError reports which key a typed lookup missed.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: property %q not found", e.Key)
}

// Unwrap makes errors.Is(err, ErrNotFound) work on wrapped lookups.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
