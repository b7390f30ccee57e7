package net

import (
	"fmt"

	"github.com/nichijoux/zmuduo-go/internal/zlog"
)

// EventLoopThreadPool owns N worker EventLoops (each on its own
// goroutine) plus the base loop it was constructed with, and hands
// callers a loop to run work on via round-robin or hash-based selection.
// With N == 0, every selector returns the base loop — every connection
// runs on the single thread that accepted it.
type EventLoopThreadPool struct {
	baseLoop   *EventLoop
	log        zlog.Logger
	name       string
	numThreads int
	workerOpts []Option
	threads    []*EventLoopThread
	loops      []*EventLoop
	next       int
	started    bool
}

// NewEventLoopThreadPool constructs a pool bound to baseLoop, named name.
// Start spawns each worker as an EventLoopThread named "<name><i>" (i
// starting at 0), its OS thread renamed to match via WithName. Call
// SetThreadNum (or pass WithPoolSize) before Start to size the worker
// pool; any other Option is forwarded to every worker's NewEventLoop call.
func NewEventLoopThreadPool(baseLoop *EventLoop, name string, log zlog.Logger, opts ...Option) *EventLoopThreadPool {
	if log == nil {
		log = zlog.Nop()
	}
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return &EventLoopThreadPool{baseLoop: baseLoop, name: name, log: log, numThreads: o.poolSize, workerOpts: opts}
}

// SetThreadNum sets the number of worker threads to spawn on Start. Must
// be called before Start.
func (p *EventLoopThreadPool) SetThreadNum(n int) { p.numThreads = n }

// Start spawns numThreads worker EventLoopThreads, running initCb (if
// non-nil) on each new loop before it starts looping.
func (p *EventLoopThreadPool) Start(initCb ThreadInitCallback) {
	p.started = true
	for i := 0; i < p.numThreads; i++ {
		workerName := fmt.Sprintf("%s%d", p.name, i)
		t := NewEventLoopThread(workerName, initCb, p.log, p.workerOpts...)
		p.threads = append(p.threads, t)
		p.loops = append(p.loops, t.StartLoop())
	}
	if p.numThreads == 0 && initCb != nil {
		initCb(p.baseLoop)
	}
}

// GetNextLoop returns the next loop in round-robin order, or the base
// loop if the pool has no workers.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	loop := p.loops[p.next%len(p.loops)]
	p.next++
	return loop
}

// GetLoopForHash deterministically selects a loop by hash, or the base
// loop if the pool has no workers.
func (p *EventLoopThreadPool) GetLoopForHash(hash int) *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	if hash < 0 {
		hash = -hash
	}
	return p.loops[hash%len(p.loops)]
}

// GetAllLoops returns every worker loop, or just the base loop if the
// pool has no workers.
func (p *EventLoopThreadPool) GetAllLoops() []*EventLoop {
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	return p.loops
}
