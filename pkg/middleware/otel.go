package middleware

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weft-dev/weft/pkg/bus"
)

// Default tracer name for instrumented applications.
const defaultTracerName = "weft"

// TracingConfig configures the OpenTelemetry hooks.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "weft").
	TracerName string

	// Filter determines which publishes to trace.
	// Return true to trace the event, false to skip.
	// If nil, all publishes are traced.
	Filter func(ev bus.AnyEvent) bool

	// AttributeExtractor extracts custom attributes from the event.
	// Called for each traced publish.
	AttributeExtractor func(ev bus.AnyEvent) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TracingOption configures the OpenTelemetry hooks.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithEventFilter sets a filter function for publishes.
func WithEventFilter(filter func(ev bus.AnyEvent) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ev bus.AnyEvent) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultTracingConfig returns the default OpenTelemetry configuration.
func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: defaultTracerName,
		Filter:     nil,
	}
}

// OpenTelemetry returns a bus observer that records every publish as a span.
//
// The observer:
//   - Creates a span per publish named after the payload type
//   - Records the event id, payload type and source as attributes
//   - Skips events rejected by the configured filter
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it in
// your main() before wiring:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...TracingOption) bus.Observer {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	return func(ev bus.AnyEvent) {
		if config.Filter != nil && !config.Filter(ev) {
			return
		}

		attrs := eventAttributes(ev.Type.String(), ev.Meta.ID, ev.Meta.Source)
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ev)...)
		}

		_, span := config.tracer.Start(
			context.Background(),
			fmt.Sprintf("weft.publish %s", ev.Type),
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(ev.Meta.Timestamp),
		)
		span.End()
	}
}

// TraceHandler wraps a typed event handler so each invocation gets a span
// with duration and panic status. The panic is re-raised after recording so
// the bus's own fault isolation still sees it.
//
// Example:
//
//	bus.Subscribe(b, middleware.TraceHandler(func(ev bus.Event[HealthChanged]) {
//	    hud.Render(ev.Payload)
//	}))
func TraceHandler[T any](fn func(bus.Event[T]), opts ...TracingOption) func(bus.Event[T]) {
	if fn == nil {
		return nil
	}
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}
	tracer := otel.Tracer(config.TracerName)
	typeName := reflect.TypeOf((*T)(nil)).Elem().String()
	name := "weft.handle " + typeName

	return func(ev bus.Event[T]) {
		_, span := tracer.Start(
			context.Background(),
			name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(eventAttributes(typeName, ev.Meta.ID, ev.Meta.Source)...),
		)
		defer span.End()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				panic(r)
			}
		}()

		fn(ev)
		span.SetStatus(codes.Ok, "")
	}
}

func eventAttributes(eventType, id, source string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("weft.event_type", eventType),
		attribute.String("weft.event_id", id),
	}
	if source != "" {
		attrs = append(attrs, attribute.String("weft.event_source", source))
	}
	return attrs
}
