package net

// TimerID is an opaque handle returned by EventLoop.RunAt/RunAfter/RunEvery,
// usable only to Cancel the timer it names. It carries the timer's creation
// sequence alongside the pointer; TimerQueue.cancel looks that sequence up
// among the still-scheduled entries, so a handle whose timer has already
// fired or been canceled matches nothing — the Go counterpart of the
// liveness check zmuduo's TimerId performs against its std::weak_ptr<Timer>.
type TimerID struct {
	timer    *Timer
	sequence int64
}

func newTimerID(t *Timer) TimerID {
	return TimerID{timer: t, sequence: t.sequence}
}

// valid reports whether id refers to a timer at all (the zero TimerID does
// not). It does not report whether that timer is still scheduled.
func (id TimerID) valid() bool {
	return id.timer != nil && id.timer.sequence == id.sequence
}
