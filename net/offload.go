package net

import (
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// OffloadPool runs caller-supplied work on a bounded goroutine pool
// instead of spawning unbounded goroutines per task, for handlers that
// need to do blocking work (disk IO, a slow RPC) without stalling the
// EventLoop goroutine that would otherwise run it inline via RunInLoop.
type OffloadPool struct {
	pool *ants.Pool
}

// NewOffloadPool creates a pool capped at size concurrent goroutines.
func NewOffloadPool(size int) (*OffloadPool, error) {
	p, err := ants.NewPool(size, ants.WithPreAlloc(false))
	if err != nil {
		return nil, errors.Wrap(err, "net: creating offload pool")
	}
	return &OffloadPool{pool: p}, nil
}

// Submit schedules fn to run on the pool, returning an error if the pool
// is closed. When all size goroutines are busy, Submit blocks until one
// is free.
func (o *OffloadPool) Submit(fn func()) error {
	if err := o.pool.Submit(fn); err != nil {
		return errors.Wrap(err, "net: offload pool submit failed")
	}
	return nil
}

// Running reports the number of goroutines currently executing work.
func (o *OffloadPool) Running() int { return o.pool.Running() }

// Release closes the pool; it does not wait for tasks already running.
func (o *OffloadPool) Release() { o.pool.Release() }
