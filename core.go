package weft

import (
	"context"
	"log/slog"
	"time"

	"github.com/weft-dev/weft/pkg/bus"
	"github.com/weft-dev/weft/pkg/convert"
	"github.com/weft-dev/weft/pkg/mainthread"
	"github.com/weft-dev/weft/pkg/store"
)

// Core owns one wired set of subsystems: an event bus, a property store
// announcing through that bus, a main-thread dispatch loop shared by both,
// and a converter registry. Construct it with New; the zero value is not
// usable.
//
// Each Core is independent. Tests and embedded hosts can run several side
// by side.
type Core struct {
	// Loop is the main-thread dispatch loop, nil when the core was built
	// with Synchronous().
	Loop *mainthread.Loop

	// Bus delivers typed events, highest priority first.
	Bus *bus.Bus

	// Store maps string keys to registered cells.
	Store *store.Store

	// Converters holds the explicitly registered value conversions.
	Converters *convert.Registry

	logger *slog.Logger
}

type coreConfig struct {
	logger            *slog.Logger
	synchronous       bool
	maxPerTick        int
	tickInterval      time.Duration
	observer          bus.Observer
	defaultConverters bool
}

// CoreOption configures a Core at construction time.
type CoreOption func(*coreConfig)

// WithLogger sets the logger shared by every subsystem. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) CoreOption {
	return func(c *coreConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Synchronous builds the core without a dispatch loop: every caller counts
// as the main thread and notifications run inline. Intended for tests and
// single-threaded hosts.
func Synchronous() CoreOption {
	return func(c *coreConfig) {
		c.synchronous = true
	}
}

// WithMaxPerTick bounds how many queued actions the loop executes per tick.
func WithMaxPerTick(n int) CoreOption {
	return func(c *coreConfig) {
		c.maxPerTick = n
	}
}

// WithTickInterval sets the loop's tick period when Run drives it.
func WithTickInterval(d time.Duration) CoreOption {
	return func(c *coreConfig) {
		c.tickInterval = d
	}
}

// WithObserver installs a global observer that sees every published event
// before its handlers run. Compose several with bus.ComposeObservers.
func WithObserver(fn bus.Observer) CoreOption {
	return func(c *coreConfig) {
		c.observer = fn
	}
}

// WithoutDefaultConverters starts the converter registry empty instead of
// preloading the standard primitive conversions.
func WithoutDefaultConverters() CoreOption {
	return func(c *coreConfig) {
		c.defaultConverters = false
	}
}

// New constructs a fully wired Core.
func New(opts ...CoreOption) *Core {
	cfg := coreConfig{
		logger:            slog.Default(),
		defaultConverters: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	core := &Core{logger: cfg.logger}

	var sched Scheduler
	if cfg.synchronous {
		sched = mainthread.NewSync(mainthread.WithSyncLogger(cfg.logger))
	} else {
		loopOpts := []mainthread.LoopOption{mainthread.WithLogger(cfg.logger)}
		if cfg.maxPerTick > 0 {
			loopOpts = append(loopOpts, mainthread.WithMaxPerTick(cfg.maxPerTick))
		}
		if cfg.tickInterval > 0 {
			loopOpts = append(loopOpts, mainthread.WithTickInterval(cfg.tickInterval))
		}
		core.Loop = mainthread.NewLoop(loopOpts...)
		sched = core.Loop
	}

	busOpts := []bus.Option{
		bus.WithLogger(cfg.logger),
		bus.WithScheduler(sched),
	}
	if cfg.observer != nil {
		busOpts = append(busOpts, bus.WithObserver(cfg.observer))
	}
	core.Bus = bus.New(busOpts...)

	core.Store = store.New(
		store.WithBus(core.Bus),
		store.WithScheduler(sched),
		store.WithLogger(cfg.logger),
	)

	convOpts := []convert.Option{}
	if cfg.defaultConverters {
		convOpts = append(convOpts, convert.WithDefaults())
	}
	core.Converters = convert.New(convOpts...)

	return core
}

// Run drives the dispatch loop until ctx is cancelled. The calling
// goroutine becomes the main thread. On a synchronous core Run returns
// nil immediately.
func (c *Core) Run(ctx context.Context) error {
	if c.Loop == nil {
		return nil
	}
	return c.Loop.Run(ctx)
}

// Tick executes one batch of queued actions on the caller's goroutine and
// returns how many ran. Hosts with their own frame loop call this instead
// of Run. Returns 0 on a synchronous core.
func (c *Core) Tick() int {
	if c.Loop == nil {
		return 0
	}
	return c.Loop.Tick()
}

// Close tears the core down: all bus subscriptions are cancelled first so
// the store unwinds quietly, then every registered property is removed.
func (c *Core) Close() {
	c.Bus.Clear()
	for _, key := range c.Store.Keys() {
		c.Store.Unregister(key)
	}
}
