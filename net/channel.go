package net

import (
	"github.com/nichijoux/zmuduo-go/internal/iopoll"
	"github.com/nichijoux/zmuduo-go/internal/zlog"
	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

// Interest-mask constants, per the spec's three-way classification. HUP/
// ERR/RDHUP are always implicitly delivered by the kernel and handled in
// handleEventWithGuard regardless of what's in the interest mask.
const (
	noneEvent  uint32 = iopoll.EventNone
	readEvent  uint32 = iopoll.ReadEvents
	writeEvent uint32 = iopoll.WriteEvents
)

// Poller channel states, mirroring the New/Added/Deleted classification
// every backend tracks via PollerIndex. NewChannel sets index to
// channelStateNew (-1) so a freshly constructed Channel starts out "not in
// poller".
const (
	channelStateNew = -1
)

// WeakGuard lets a Channel owner (typically a connection) hand dispatch a
// liveness check instead of a raw pointer, so handleEvent can refuse to run
// callbacks once the owner has been torn down. This is the Go rendering of
// zmuduo's std::weak_ptr tie: there is no real weak reference here (Go's GC
// keeps the owner alive as long as this Channel references it), only the
// liveness *protocol* the C++ original encodes with weak_ptr.
type WeakGuard interface {
	// Alive reports whether the guarded owner is still usable. Once it
	// returns false it must never return true again.
	Alive() bool
}

// ReadEventCallback is invoked when a Channel becomes readable (or a
// priority/RDHUP event fires), receiving the Timestamp at which the
// enclosing Poller.Poll call returned.
type ReadEventCallback func(receiveTime timestamp.Timestamp)

// EventCallback is invoked for write/close/error events, which carry no
// extra data beyond "it happened".
type EventCallback func()

// Channel binds one file descriptor to one owning EventLoop and dispatches
// the readiness events the Poller reports on it to typed callbacks. A
// Channel does not own its file descriptor; it is purely an event
// dispatcher. It must only be mutated from its owning loop's thread.
type Channel struct {
	loop *EventLoop
	fd   int

	events  uint32
	revents uint32
	index   int // poller state-index, opaque to Channel itself

	tie      WeakGuard
	tied     bool
	addedToLoop bool

	readCallback  ReadEventCallback
	writeCallback EventCallback
	closeCallback EventCallback
	errorCallback EventCallback

	log zlog.Logger
}

// NewChannel creates a Channel bound to fd within loop. The Channel is not
// registered with the poller until EnableReading/EnableWriting is called.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{
		loop:  loop,
		fd:    fd,
		index: channelStateNew,
		log:   loop.log,
	}
}

// FD returns the bound file descriptor.
func (c *Channel) FD() int { return c.fd }

// OwnerLoop returns the EventLoop this Channel is bound to.
func (c *Channel) OwnerLoop() *EventLoop { return c.loop }

// InterestEvents implements iopoll.FDSource.
func (c *Channel) InterestEvents() uint32 { return c.events }

// SetRevents implements iopoll.FDSource; called by the Poller to record
// which events actually fired.
func (c *Channel) SetRevents(events uint32) { c.revents = events }

// PollerIndex implements iopoll.FDSource.
func (c *Channel) PollerIndex() int { return c.index }

// SetPollerIndex implements iopoll.FDSource.
func (c *Channel) SetPollerIndex(index int) { c.index = index }

// SetReadCallback installs the read-event callback.
func (c *Channel) SetReadCallback(cb ReadEventCallback) { c.readCallback = cb }

// SetWriteCallback installs the write-event callback.
func (c *Channel) SetWriteCallback(cb EventCallback) { c.writeCallback = cb }

// SetCloseCallback installs the close-event callback.
func (c *Channel) SetCloseCallback(cb EventCallback) { c.closeCallback = cb }

// SetErrorCallback installs the error-event callback.
func (c *Channel) SetErrorCallback(cb EventCallback) { c.errorCallback = cb }

// Tie associates guard with this Channel. Once tied, handleEvent refuses to
// dispatch any callback once guard.Alive() returns false — the sole
// mechanism protecting a connection's callbacks from running after the
// connection has been destroyed.
func (c *Channel) Tie(guard WeakGuard) {
	c.tie = guard
	c.tied = true
}

// IsReading reports whether the read interest bit is set.
func (c *Channel) IsReading() bool { return c.events&readEvent != 0 }

// IsWriting reports whether the write interest bit is set.
func (c *Channel) IsWriting() bool { return c.events&writeEvent != 0 }

// IsNoneEvent reports whether no interest bits are set.
func (c *Channel) IsNoneEvent() bool { return c.events == noneEvent }

// EnableReading turns on read interest and pushes the update to the
// poller via the owning loop.
func (c *Channel) EnableReading() {
	if !c.IsReading() {
		c.events |= readEvent
		c.update()
	}
}

// DisableReading turns off read interest.
func (c *Channel) DisableReading() {
	if c.IsReading() {
		c.events &^= readEvent
		c.update()
	}
}

// EnableWriting turns on write interest.
func (c *Channel) EnableWriting() {
	if !c.IsWriting() {
		c.events |= writeEvent
		c.update()
	}
}

// DisableWriting turns off write interest.
func (c *Channel) DisableWriting() {
	if c.IsWriting() {
		c.events &^= writeEvent
		c.update()
	}
}

// DisableAll clears every interest bit.
func (c *Channel) DisableAll() {
	if c.events != noneEvent {
		c.events = noneEvent
		c.update()
	}
}

// Remove deregisters this Channel from its owning loop's poller. Idempotent
// if the channel was never added or has already been removed.
func (c *Channel) Remove() {
	if !c.addedToLoop {
		return
	}
	c.addedToLoop = false
	c.loop.removeChannel(c)
}

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.updateChannel(c)
}

// HandleEvent is the loop's entry point for dispatching a readiness
// notification recorded via SetRevents. If tied, a failed liveness upgrade
// skips dispatch entirely.
func (c *Channel) HandleEvent(receiveTime timestamp.Timestamp) {
	if c.tied {
		if c.tie == nil || !c.tie.Alive() {
			return
		}
	}
	c.handleEventWithGuard(receiveTime)
}

// handleEventWithGuard dispatches in the order the spec mandates every
// caller depends on: close, error, read, write.
func (c *Channel) handleEventWithGuard(receiveTime timestamp.Timestamp) {
	if c.log != nil {
		c.log.Debugf("channel fd=%d handleEvent revents=%#x", c.fd, c.revents)
	}
	if (c.revents&iopoll.EventHup != 0) && (c.revents&iopoll.EventIn == 0) {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.revents&iopoll.EventNVal != 0 && c.log != nil {
		c.log.Warnf("channel fd=%d handleEvent: EventNVal", c.fd)
	}
	if c.revents&(iopoll.EventErr|iopoll.EventNVal) != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&(iopoll.EventIn|iopoll.EventPri|iopoll.EventRDHup) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}
	if c.revents&iopoll.EventOut != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
