// Package store provides the keyed property registry: a thread-safe map from
// string keys to reactive cells, with persistence flags, deferred-subscription
// resolution and reverse (cell to key) lookup.
//
// Producers register cells under string keys, or ask for them lazily:
//
//	health, _ := store.GetOrCreate(s, "player.health", 100)
//	health.Set(80)
//
// Consumers that may start before their properties exist subscribe deferred;
// the callback runs synchronously if the key is already registered, otherwise
// exactly once when a matching Register call arrives:
//
//	sub := s.SubscribeDeferred("player.health", func(cell weft.AnyCell) { ... })
//
// A store constructed with an event bus announces lifecycle and value changes
// as PropertyRegistered, PropertyChanged and PropertyUnregistered events, so
// listeners can react to any property without holding a cell reference. The
// change event carries the owning key, resolved through the store's reverse
// index at notification time.
package store
