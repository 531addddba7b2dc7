package bus

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"reflect"
	"time"
)

// Metadata carries the delivery envelope stamped onto every published event.
type Metadata struct {
	// ID is a unique identifier assigned at publish time.
	ID string

	// Timestamp records when the event was published.
	Timestamp time.Time

	// Source optionally names the system that published the event.
	Source string
}

// Event is a typed event as seen by a subscriber: the payload plus the
// metadata stamped at publish time.
type Event[T any] struct {
	Payload T
	Meta    Metadata
}

// AnyEvent is the type-erased form handed to the global observer hook.
type AnyEvent struct {
	// Type is the static payload type the event was published under.
	Type reflect.Type

	Payload any
	Meta    Metadata
}

func newMetadata(source string) Metadata {
	return Metadata{
		ID:        generateID(),
		Timestamp: time.Now(),
		Source:    source,
	}
}

// generateID returns a random 16-byte hex identifier, falling back to a
// timestamp-derived one if the system entropy source fails.
func generateID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}
