package net

import (
	"sync/atomic"

	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

var timerSequenceCounter int64

// nextTimerSequence hands out a process-wide strictly increasing sequence
// number, used to break ties between timers scheduled for the exact same
// expiration instant. Grounded on zmuduo's Timer::s_numCreated_ atomic.
func nextTimerSequence() int64 {
	return atomic.AddInt64(&timerSequenceCounter, 1)
}

// TimerCallback is invoked when a Timer fires.
type TimerCallback func()

// Timer is a single scheduled (and possibly repeating) callback. It is
// always owned and mutated from its TimerQueue's loop thread.
type Timer struct {
	callback TimerCallback
	expiration timestamp.Timestamp
	interval   float64 // seconds; zero means one-shot
	repeat     bool
	sequence   int64
}

// newTimer constructs a Timer due at when, repeating every interval
// seconds if interval > 0.
func newTimer(cb TimerCallback, when timestamp.Timestamp, interval float64) *Timer {
	return &Timer{
		callback:   cb,
		expiration: when,
		interval:   interval,
		repeat:     interval > 0,
		sequence:   nextTimerSequence(),
	}
}

// run invokes the timer's callback.
func (t *Timer) run() {
	if t.callback != nil {
		t.callback()
	}
}

// Expiration returns the instant this timer is next due.
func (t *Timer) Expiration() timestamp.Timestamp { return t.expiration }

// Repeat reports whether this timer reschedules itself after firing.
func (t *Timer) Repeat() bool { return t.repeat }

// Sequence returns this timer's creation-order tiebreaker.
func (t *Timer) Sequence() int64 { return t.sequence }

// restart reschedules a repeating timer relative to now.
func (t *Timer) restart(now timestamp.Timestamp) {
	if t.repeat {
		t.expiration = now.Add(t.interval)
	} else {
		t.expiration = timestamp.Invalid()
	}
}
