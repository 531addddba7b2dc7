package store

import "reflect"

// PropertyChanged is published on the event bus whenever a registered cell's
// value changes (or a forced notification fires).
type PropertyChanged struct {
	// Key is the property key the cell is registered under.
	Key string

	// Old and New are the boxed values of the transition; Old == New for a
	// forced notification.
	Old any
	New any

	// Type is the cell's element type.
	Type reflect.Type
}

// PropertyRegistered is published when a key is bound to a cell, whether by
// Register or by the create half of GetOrCreate.
type PropertyRegistered struct {
	Key        string
	Persistent bool
	Type       reflect.Type
}

// PropertyUnregistered is published when a key is removed, by Unregister or
// by ClearNonPersistent.
type PropertyUnregistered struct {
	Key string
}
