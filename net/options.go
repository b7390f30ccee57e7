package net

import (
	"github.com/nichijoux/zmuduo-go/internal/iopoll"
	"github.com/nichijoux/zmuduo-go/internal/zlog"
	"github.com/nichijoux/zmuduo-go/pkg/buffer"
)

// options collects every construction-time knob NewEventLoop and
// NewEventLoopThreadPool accept, applied via the functional-option
// pattern so callers only name the knobs they actually want to change.
type options struct {
	backend           iopoll.Backend
	backendSet        bool
	logger            zlog.Logger
	poolSize          int
	initialBufferSize int
	name              string
}

func defaultOptions() options {
	return options{
		logger:            zlog.Nop(),
		initialBufferSize: buffer.InitialSize,
	}
}

// Option configures an EventLoop or EventLoopThreadPool at construction.
type Option func(*options)

// WithPollerBackend forces a specific Poller backend, overriding the
// ZMUDUO_USE_POLL / ZMUDUO_USE_SELECT environment variables.
func WithPollerBackend(backend iopoll.Backend) Option {
	return func(o *options) {
		o.backend = backend
		o.backendSet = true
	}
}

// WithLogger installs the Logger every constructed component logs
// through. Defaults to a no-op logger.
func WithLogger(log zlog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithPoolSize sets the number of worker threads an EventLoopThreadPool
// spawns on Start; equivalent to calling SetThreadNum(n).
func WithPoolSize(n int) Option {
	return func(o *options) { o.poolSize = n }
}

// WithInitialBufferSize sets the buffer capacity a Connection built on
// top of this EventLoop should size its Buffer to. Stored on the
// EventLoop for the Connection implementation to read; the core itself
// does not allocate any Buffer.
func WithInitialBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialBufferSize = n
		}
	}
}

// WithName sets the OS-visible thread name Loop assigns to its goroutine
// (via PR_SET_NAME) once it locks onto an OS thread. EventLoopThreadPool
// uses this to name each worker "<poolName><i>".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}
