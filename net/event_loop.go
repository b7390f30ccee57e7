package net

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/nichijoux/zmuduo-go/internal/iopoll"
	"github.com/nichijoux/zmuduo-go/internal/zlog"
	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

// Functor is a unit of work submitted to an EventLoop via RunInLoop or
// QueueInLoop.
type Functor func()

// EventLoop is "one loop per thread": once Loop is called from a
// goroutine, that goroutine owns the loop until Quit is called, and every
// Channel registered on it may only be touched from that same goroutine
// (enforced by AssertInLoopThread, not by the Go runtime).
type EventLoop struct {
	poller iopoll.Poller
	timers *TimerQueue

	looping  int32 // atomic bool
	quit     int32 // atomic bool
	eventHandling int32 // atomic bool
	callingPendingFunctors int32 // atomic bool

	threadID int   // OS thread id (gettid) of the goroutine running Loop
	closed   int32 // atomic bool, set by Close

	wakeupFD      int
	wakeupChannel *Channel

	mu              sync.Mutex
	pendingFunctors []Functor

	activeChannels []iopoll.FDSource

	log               zlog.Logger
	initialBufferSize int
	name              string
}

// NewEventLoop constructs an EventLoop bound to the poller backend chosen
// by iopoll.ResolveBackend (overridable via ZMUDUO_USE_POLL /
// ZMUDUO_USE_SELECT, or by passing WithPollerBackend). The returned loop
// is not yet running; call Loop from the goroutine meant to own it.
func NewEventLoop(opts ...Option) (*EventLoop, error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	backend := iopoll.ResolveBackend()
	if o.backendSet {
		backend = o.backend
	}
	poller, err := iopoll.New(backend)
	if err != nil {
		return nil, errors.Wrap(err, "net: creating poller")
	}
	wakeupFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "net: eventfd failed")
	}

	loop := &EventLoop{
		poller:            poller,
		wakeupFD:          wakeupFD,
		log:               o.logger,
		initialBufferSize: o.initialBufferSize,
		name:              o.name,
	}
	loop.wakeupChannel = NewChannel(loop, wakeupFD)
	loop.wakeupChannel.SetReadCallback(loop.handleWakeup)
	loop.wakeupChannel.EnableReading()

	timers, err := newTimerQueue(loop)
	if err != nil {
		_ = unix.Close(wakeupFD)
		return nil, err
	}
	loop.timers = timers

	return loop, nil
}

// Loop blocks, polling for and dispatching events, until Quit is called.
// Must be called exactly once, from the goroutine that will own this loop.
func (l *EventLoop) Loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if l.name != "" {
		if err := setThreadName(l.name); err != nil {
			l.log.Errorf("net: setThreadName(%q) failed: %v", l.name, err)
		}
	}

	l.threadID = unix.Gettid()
	atomic.StoreInt32(&l.looping, 1)
	atomic.StoreInt32(&l.quit, 0)

	l.log.Infof("EventLoop %p start looping", l)

	for atomic.LoadInt32(&l.quit) == 0 {
		l.activeChannels = l.activeChannels[:0]
		pollTime, err := l.poller.Poll(10000, &l.activeChannels)
		if err != nil {
			l.log.Errorf("net: poller.Poll failed: %v", err)
			continue
		}
		receiveTime := timestamp.FromTime(pollTime)

		atomic.StoreInt32(&l.eventHandling, 1)
		for _, src := range l.activeChannels {
			if ch, ok := src.(*Channel); ok {
				ch.HandleEvent(receiveTime)
			}
		}
		atomic.StoreInt32(&l.eventHandling, 0)

		l.doPendingFunctors()
	}

	l.log.Infof("EventLoop %p stop looping", l)
	atomic.StoreInt32(&l.looping, 0)
}

// Quit asks the loop to stop after its current iteration, waking it
// immediately if the caller is on a different goroutine than the one
// running Loop.
func (l *EventLoop) Quit() {
	atomic.StoreInt32(&l.quit, 1)
	if !l.IsInLoopThread() {
		l.Wakeup()
	}
}

// IsInLoopThread reports whether the caller is the goroutine currently
// (or most recently) running Loop for this EventLoop. Before Loop has
// ever run, threadID is unset (0) and every caller counts as "in the
// loop thread", since construction-time setup has no other goroutine to
// race against yet.
func (l *EventLoop) IsInLoopThread() bool {
	return l.threadID == 0 || l.threadID == unix.Gettid()
}

// AssertInLoopThread logs a fatal error if called from outside this
// loop's owning goroutine. Grounded on zmuduo's assertInLoopThread abort
// behavior; here it goes through zlog.Logger.Fatalf rather than abort(3).
func (l *EventLoop) AssertInLoopThread() {
	if !l.IsInLoopThread() {
		l.log.Fatalf("net: EventLoop %p used from a foreign goroutine", l)
	}
}

// RunInLoop runs fn immediately if called from the loop's own goroutine,
// otherwise enqueues it via QueueInLoop.
func (l *EventLoop) RunInLoop(fn Functor) {
	if l.IsInLoopThread() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop appends fn to the pending-functor queue and wakes the loop
// if necessary: either it isn't in Loop at all, or it's already inside
// doPendingFunctors and needs a nudge to run again rather than block in
// the next Poll.
func (l *EventLoop) QueueInLoop(fn Functor) {
	l.mu.Lock()
	l.pendingFunctors = append(l.pendingFunctors, fn)
	l.mu.Unlock()

	if !l.IsInLoopThread() || atomic.LoadInt32(&l.callingPendingFunctors) == 1 {
		l.Wakeup()
	}
}

func (l *EventLoop) doPendingFunctors() {
	l.mu.Lock()
	functors := l.pendingFunctors
	l.pendingFunctors = nil
	l.mu.Unlock()

	atomic.StoreInt32(&l.callingPendingFunctors, 1)
	for _, fn := range functors {
		fn()
	}
	atomic.StoreInt32(&l.callingPendingFunctors, 0)
}

// Wakeup writes to the loop's eventfd so a blocked Poll call returns
// immediately.
func (l *EventLoop) Wakeup() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(l.wakeupFD, buf[:]); err != nil {
		l.log.Errorf("net: wakeup write failed: %v", err)
	}
}

func (l *EventLoop) handleWakeup(timestamp.Timestamp) {
	var buf [8]byte
	if _, err := unix.Read(l.wakeupFD, buf[:]); err != nil {
		l.log.Errorf("net: wakeup read failed: %v", err)
	}
}

func (l *EventLoop) updateChannel(ch *Channel) {
	l.AssertInLoopThread()
	if err := l.poller.UpdateChannel(ch); err != nil {
		l.log.Errorf("net: updateChannel fd=%d failed: %v", ch.FD(), err)
	}
}

func (l *EventLoop) removeChannel(ch *Channel) {
	l.AssertInLoopThread()
	if err := l.poller.RemoveChannel(ch); err != nil {
		l.log.Errorf("net: removeChannel fd=%d failed: %v", ch.FD(), err)
	}
}

func (l *EventLoop) hasChannel(ch *Channel) bool {
	return l.poller.HasChannel(ch)
}

// InitialBufferSize returns the buffer capacity a Connection built atop
// this loop should use, per WithInitialBufferSize (default
// buffer.InitialSize). The core itself never allocates a Buffer.
func (l *EventLoop) InitialBufferSize() int { return l.initialBufferSize }

// Name returns the name passed via WithName, or "" if none was set.
func (l *EventLoop) Name() string { return l.name }

// RunAt schedules cb to run once at when.
func (l *EventLoop) RunAt(when timestamp.Timestamp, cb TimerCallback) TimerID {
	return l.scheduleTimer(cb, when, 0)
}

// RunAfter schedules cb to run once, delay after now.
func (l *EventLoop) RunAfter(delay time.Duration, cb TimerCallback) TimerID {
	return l.scheduleTimer(cb, timestamp.Now().Add(delay.Seconds()), 0)
}

// RunEvery schedules cb to run every interval, starting interval from now.
func (l *EventLoop) RunEvery(interval time.Duration, cb TimerCallback) TimerID {
	when := timestamp.Now().Add(interval.Seconds())
	return l.scheduleTimer(cb, when, interval.Seconds())
}

func (l *EventLoop) scheduleTimer(cb TimerCallback, when timestamp.Timestamp, interval float64) TimerID {
	var id TimerID
	done := make(chan struct{})
	l.RunInLoop(func() {
		id = l.timers.addTimer(cb, when, interval)
		close(done)
	})
	if l.IsInLoopThread() {
		return id
	}
	<-done
	return id
}

// Cancel cancels a previously scheduled timer. Safe to call from any
// goroutine. Returns ErrInvalidTimer for the zero TimerID; canceling a
// timer that has already fired or been canceled is a no-op that returns
// nil.
func (l *EventLoop) Cancel(id TimerID) error {
	if !id.valid() {
		return ErrInvalidTimer
	}
	l.RunInLoop(func() { l.timers.cancel(id) })
	return nil
}

// Close releases the loop's wakeup and timer file descriptors. Call after
// Loop has returned. Returns ErrLoopClosed if called more than once.
func (l *EventLoop) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return ErrLoopClosed
	}
	l.timers.close()
	l.wakeupChannel.DisableAll()
	l.wakeupChannel.Remove()
	if err := unix.Close(l.wakeupFD); err != nil {
		return errors.Wrap(err, "net: closing wakeup fd")
	}
	return l.poller.Close()
}
