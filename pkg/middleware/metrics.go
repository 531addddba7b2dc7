package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weft-dev/weft/pkg/bus"
	"github.com/weft-dev/weft/pkg/mainthread"
	"github.com/weft-dev/weft/pkg/store"
)

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "weft").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collector.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry. Pass a dedicated
// prometheus.NewRegistry() when running more than one collector in a process;
// metric names in one registry must be unique.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "weft",
		Subsystem:   "",
		ConstLabels: nil,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics exposes the reactive core's counters and gauges to Prometheus.
type Metrics struct {
	config  MetricsConfig
	factory promauto.Factory

	eventsPublished *prometheus.CounterVec
}

// Prometheus builds a metrics collector. Attach it to the pieces in use with
// WatchBus, WatchStore and WatchLoop, and install Observer on the bus to get
// per-type publish counts.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	m := &Metrics{config: config, factory: factory}

	m.eventsPublished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "events_published_total",
		Help:        "Total events published on the bus, by payload type and source",
		ConstLabels: config.ConstLabels,
	}, []string{"event_type", "source"})

	return m
}

// Observer returns a bus observer counting every publish by payload type and
// source. Install it with bus.WithObserver or Bus.SetObserver, composing with
// bus.ComposeObservers when tracing is also enabled.
func (m *Metrics) Observer() bus.Observer {
	return func(ev bus.AnyEvent) {
		source := ev.Meta.Source
		if source == "" {
			source = "none"
		}
		m.eventsPublished.WithLabelValues(ev.Type.String(), source).Inc()
	}
}

// WatchBus registers delivery, fault and subscription metrics over b.
func (m *Metrics) WatchBus(b *bus.Bus) {
	m.counterFunc("events_delivered_total",
		"Total handler deliveries that completed without panicking",
		func() float64 { return float64(b.Stats().Delivered) })
	m.counterFunc("handler_panics_total",
		"Total event handler panics recovered by the bus",
		func() float64 { return float64(b.Stats().HandlerPanics) })
	m.counterFunc("observer_panics_total",
		"Total observer hook panics recovered by the bus",
		func() float64 { return float64(b.Stats().ObserverPanics) })
	m.gaugeFunc("bus_subscribers",
		"Live subscriptions across all event types",
		func() float64 { return float64(b.TotalSubscriberCount()) })
}

// WatchStore registers property registry metrics over s.
func (m *Metrics) WatchStore(s *store.Store) {
	m.gaugeFunc("properties",
		"Registered properties in the store",
		func() float64 { return float64(s.Len()) })
	m.gaugeFunc("deferred_subscriptions",
		"Deferred subscriptions still waiting for their key",
		func() float64 { return float64(s.PendingDeferred()) })
}

// WatchLoop registers main-loop health metrics over l.
func (m *Metrics) WatchLoop(l *mainthread.Loop) {
	m.counterFunc("loop_actions_executed_total",
		"Total actions executed by the main loop",
		func() float64 { return float64(l.Stats().Executed) })
	m.counterFunc("loop_deferred_ticks_total",
		"Ticks that left work queued because the per-tick budget was hit",
		func() float64 { return float64(l.Stats().DeferredTicks) })
	m.gaugeFunc("loop_actions_pending",
		"Actions queued and not yet executed",
		func() float64 { return float64(l.Stats().Pending) })
	m.gaugeFunc("loop_queue_high_water",
		"Largest queue length observed since start",
		func() float64 { return float64(l.Stats().HighWater) })
}

func (m *Metrics) counterFunc(name, help string, fn func() float64) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   m.config.Namespace,
		Subsystem:   m.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.config.ConstLabels,
	}, fn)
}

func (m *Metrics) gaugeFunc(name, help string, fn func() float64) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   m.config.Namespace,
		Subsystem:   m.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.config.ConstLabels,
	}, fn)
}
