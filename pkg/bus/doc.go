// Package bus provides a typed, priority-ordered, thread-safe publish/
// subscribe event bus keyed by event payload type.
//
// Subscribers register a typed handler with an optional priority and owner:
//
//	sub := bus.Subscribe(b, func(ev bus.Event[UserLoggedIn]) { ... },
//		bus.WithPriority(10), bus.WithOwner(widget))
//	defer sub.Dispose()
//
// Publishing stamps every event with a unique ID, creation timestamp and
// optional source, snapshots the subscriber list for the payload type, sorts
// the snapshot by descending priority (ties keep snapshot order) and invokes
// each handler with individual panic isolation:
//
//	bus.Publish(b, UserLoggedIn{Name: "ada"}, bus.WithSource("auth"))
//
// A bus constructed with a Scheduler delivers off-main publishes on the
// designated context; otherwise handlers run inline on the publisher's
// goroutine. A global observer hook, when set, sees every publish before any
// handler runs and is itself fault-isolated so a broken monitor cannot block
// publishing.
package bus
