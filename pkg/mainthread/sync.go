package mainthread

import (
	"log/slog"
	"runtime/debug"
)

// Sync is the synchronous marshaller variant: dispatched actions execute
// immediately on the calling goroutine and every goroutine counts as the
// main context. Intended for tests and single-threaded hosts.
type Sync struct {
	logger *slog.Logger
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithSyncLogger sets the logger used to report dispatch panics.
func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *Sync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSync creates a synchronous marshaller.
func NewSync(opts ...SyncOption) *Sync {
	s := &Sync{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsMain always reports true.
func (s *Sync) IsMain() bool {
	return true
}

// Dispatch executes fn immediately, with the same panic recovery as the
// live loop.
func (s *Sync) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
