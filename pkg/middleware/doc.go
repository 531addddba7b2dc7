// Package middleware provides production-grade instrumentation for the
// reactive core.
//
// This package includes:
//   - OpenTelemetry tracing hooks for event publishes and handlers
//   - Prometheus metrics over the bus, the property store and the main loop
//
// # Prometheus Metrics
//
// Prometheus builds a collector and attaches it to the pieces in use:
//
//	m := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	m.WatchBus(b)
//	m.WatchStore(s)
//	m.WatchLoop(loop)
//	b.SetObserver(m.Observer())
//
// Then expose the metrics endpoint:
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
//
// Metrics collected:
//   - weft_events_published_total: Counter of publishes by payload type and source
//   - weft_events_delivered_total: Counter of successful handler deliveries
//   - weft_handler_panics_total / weft_observer_panics_total: fault counters
//   - weft_bus_subscribers: Gauge of live subscriptions
//   - weft_properties: Gauge of registered properties
//   - weft_deferred_subscriptions: Gauge of subscriptions awaiting their key
//   - weft_loop_actions_executed_total, weft_loop_actions_pending,
//     weft_loop_deferred_ticks_total, weft_loop_queue_high_water: loop health
//
// # OpenTelemetry
//
// OpenTelemetry returns a bus observer that records every publish as a span
// under the global tracer provider; TraceHandler wraps one handler so each
// invocation gets a span with duration and panic status:
//
//	b.SetObserver(middleware.OpenTelemetry(
//		middleware.WithTracerName("my-app"),
//	))
//	bus.Subscribe(b, middleware.TraceHandler(onHealthChanged))
//
// Configure the provider in main() before wiring, the usual way:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
package middleware
