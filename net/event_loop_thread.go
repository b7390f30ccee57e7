package net

import (
	"sync"

	"github.com/nichijoux/zmuduo-go/internal/zlog"
)

// ThreadInitCallback runs on the new loop's own goroutine just before it
// enters Loop, letting callers register channels/timers before any event
// can arrive.
type ThreadInitCallback func(*EventLoop)

// EventLoopThread owns exactly one goroutine running exactly one
// EventLoop. StartLoop spawns the goroutine and blocks the caller until
// the EventLoop has finished constructing, handing back a pointer safe to
// use immediately — the Go rendering of zmuduo's condition-variable
// construction handoff.
type EventLoopThread struct {
	mu     sync.Mutex
	cond   *sync.Cond
	loop   *EventLoop
	initCb ThreadInitCallback
	log    zlog.Logger
	opts   []Option
	name   string
}

// NewEventLoopThread constructs a thread wrapper; no goroutine is spawned
// until StartLoop is called. opts is forwarded to the worker's
// NewEventLoop call. name, if non-empty, becomes the OS-visible name of
// the goroutine's locked thread (see WithName).
func NewEventLoopThread(name string, initCb ThreadInitCallback, log zlog.Logger, opts ...Option) *EventLoopThread {
	if log == nil {
		log = zlog.Nop()
	}
	t := &EventLoopThread{initCb: initCb, log: log, opts: opts, name: name}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop spawns the owning goroutine and blocks until its EventLoop is
// constructed and about to enter Loop, then returns that EventLoop.
func (t *EventLoopThread) StartLoop() *EventLoop {
	go t.threadFunc()

	t.mu.Lock()
	for t.loop == nil {
		t.cond.Wait()
	}
	loop := t.loop
	t.mu.Unlock()

	return loop
}

func (t *EventLoopThread) threadFunc() {
	opts := append([]Option{WithLogger(t.log)}, t.opts...)
	if t.name != "" {
		opts = append(opts, WithName(t.name))
	}
	loop, err := NewEventLoop(opts...)
	if err != nil {
		t.log.Fatalf("net: EventLoopThread failed to construct EventLoop: %v", err)
		return
	}

	if t.initCb != nil {
		t.initCb(loop)
	}

	t.mu.Lock()
	t.loop = loop
	t.cond.Signal()
	t.mu.Unlock()

	loop.Loop()
}
