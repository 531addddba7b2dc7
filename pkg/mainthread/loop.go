package mainthread

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// defaultMaxPerTick bounds how many queued actions one tick may run.
	defaultMaxPerTick = 256

	// defaultTickInterval paces the Run loop.
	defaultTickInterval = 10 * time.Millisecond
)

// Loop is the live thread marshaller. Actions dispatched from any goroutine
// are appended to an unbounded FIFO queue and executed on the designated
// goroutine, at most MaxPerTick per tick; whatever does not fit is deferred
// to later ticks, never dropped.
//
// The goroutine that constructs the loop is the designated context until Run
// rebinds it to the goroutine driving the loop. Hosts with their own frame
// loop skip Run and call Tick once per frame instead.
type Loop struct {
	// mu protects queue and highWater.
	mu        sync.Mutex
	queue     []func()
	highWater int

	maxPerTick   int
	tickInterval time.Duration

	// gid is the goroutine ID of the designated context.
	gid     atomic.Uint64
	running atomic.Bool

	logger *slog.Logger

	executed      atomic.Uint64
	deferredTicks atomic.Uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxPerTick bounds the number of actions one tick may execute.
// Zero or negative means unbounded. Default 256.
func WithMaxPerTick(n int) LoopOption {
	return func(l *Loop) {
		l.maxPerTick = n
	}
}

// WithTickInterval sets the pacing of the Run loop. Default 10ms.
func WithTickInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.tickInterval = d
		}
	}
}

// WithLogger sets the logger used to report action panics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop creates a loop bound to the calling goroutine.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		maxPerTick:   defaultMaxPerTick,
		tickInterval: defaultTickInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.gid.Store(goroutineID())
	return l
}

// Dispatch queues fn to run on the designated goroutine. Safe to call from
// any goroutine; nil actions are ignored. The queue is unbounded, so
// Dispatch never blocks and never drops.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	if len(l.queue) > l.highWater {
		l.highWater = len(l.queue)
	}
	l.mu.Unlock()
}

// IsMain reports whether the calling goroutine is the designated context.
func (l *Loop) IsMain() bool {
	return goroutineID() == l.gid.Load()
}

// Tick drains up to MaxPerTick queued actions in FIFO order and returns the
// number executed. Leftover actions stay queued for later ticks. Tick must
// be called from the designated goroutine.
func (l *Loop) Tick() int {
	l.mu.Lock()
	n := len(l.queue)
	if n == 0 {
		l.mu.Unlock()
		return 0
	}
	if l.maxPerTick > 0 && n > l.maxPerTick {
		n = l.maxPerTick
	}
	batch := make([]func(), n)
	copy(batch, l.queue[:n])
	l.queue = l.queue[n:]
	leftover := len(l.queue)
	l.mu.Unlock()

	if leftover > 0 {
		l.deferredTicks.Add(1)
	}

	for _, fn := range batch {
		l.execute(fn)
	}
	return n
}

// Run binds the calling goroutine as the designated context and drains the
// queue once per tick interval until ctx ends. Actions still queued when ctx
// ends remain queued. Returns ErrAlreadyRunning if the loop is already being
// driven.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.gid.Store(goroutineID())

	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Pending returns the number of queued actions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// LoopStats is a point-in-time snapshot of loop counters.
type LoopStats struct {
	// Executed is the total number of actions run.
	Executed uint64

	// DeferredTicks counts ticks that hit the per-tick bound and left
	// actions queued.
	DeferredTicks uint64

	// Pending is the current queue length.
	Pending int

	// HighWater is the largest queue length observed.
	HighWater int
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	pending := len(l.queue)
	highWater := l.highWater
	l.mu.Unlock()

	return LoopStats{
		Executed:      l.executed.Load(),
		DeferredTicks: l.deferredTicks.Load(),
		Pending:       pending,
		HighWater:     highWater,
	}
}

// execute runs one action with panic recovery so a faulty action cannot
// take down the loop.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.executed.Add(1)
	fn()
}
