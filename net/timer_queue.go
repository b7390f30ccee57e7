package net

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/nichijoux/zmuduo-go/internal/zlog"
	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

// timerEntry is the (expiration, sequence) ordering key zmuduo's
// TimerQueue keeps in a std::set. Go renders the set as a slice kept
// sorted by this key, with sort.Search standing in for lower_bound.
type timerEntry struct {
	expiration timestamp.Timestamp
	sequence   int64
	timer      *Timer
}

func less(a, b timerEntry) bool {
	if a.expiration != b.expiration {
		return a.expiration < b.expiration
	}
	return a.sequence < b.sequence
}

// TimerQueue owns every Timer scheduled on one EventLoop, backed by a
// CLOCK_MONOTONIC timerfd so the loop's poller can wait on timer expiry
// exactly like any other readable fd. Must only be touched from its
// EventLoop's thread (EventLoop.RunAt/RunAfter/RunEvery/Cancel hop there
// via RunInLoop before calling addTimer/cancel).
type TimerQueue struct {
	loop      *EventLoop
	timerFD   int
	channel   *Channel
	entries   []timerEntry // kept sorted ascending by (expiration, sequence)
	canceling map[int64]bool // sequences canceled while not in entries (e.g. mid-fire), to suppress their reset
	log       zlog.Logger
}

// newTimerQueue creates the timerfd and its Channel and enables reading on
// that Channel; the timerfd stays disarmed until the first timer is added.
func newTimerQueue(loop *EventLoop) (*TimerQueue, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "net: timerfd_create failed")
	}
	tq := &TimerQueue{
		loop:      loop,
		timerFD:   fd,
		canceling: make(map[int64]bool),
		log:       loop.log,
	}
	tq.channel = NewChannel(loop, fd)
	tq.channel.SetReadCallback(tq.handleRead)
	tq.channel.EnableReading()
	return tq, nil
}

func (tq *TimerQueue) close() {
	tq.channel.DisableAll()
	tq.channel.Remove()
	_ = unix.Close(tq.timerFD)
}

// addTimer schedules cb to run at when, repeating every interval seconds
// if interval > 0. Must run on the owning loop (callers go through
// EventLoop.RunAt which uses runInLoop to hop threads when necessary).
func (tq *TimerQueue) addTimer(cb TimerCallback, when timestamp.Timestamp, interval float64) TimerID {
	t := newTimer(cb, when, interval)
	tq.insert(t)
	return newTimerID(t)
}

func (tq *TimerQueue) insert(t *Timer) {
	earliestChanged := tq.insertEntry(timerEntry{expiration: t.expiration, sequence: t.sequence, timer: t})
	if earliestChanged {
		tq.resetTimerFD(t.expiration)
	}
}

// insertEntry inserts e in sorted position and reports whether it became
// the new earliest entry (index 0), which is the only case that requires
// reprogramming the timerfd.
func (tq *TimerQueue) insertEntry(e timerEntry) bool {
	i := sort.Search(len(tq.entries), func(i int) bool { return less(e, tq.entries[i]) })
	tq.entries = append(tq.entries, timerEntry{})
	copy(tq.entries[i+1:], tq.entries[i:])
	tq.entries[i] = e
	return i == 0
}

// cancel removes the timer id names from the scheduled entries. If it is
// not among them (for example because getExpired extracted it and its
// callback is running now), its sequence is recorded in tq.canceling
// instead, which stops reset from rescheduling a repeating timer.
func (tq *TimerQueue) cancel(id TimerID) {
	if !id.valid() {
		return
	}
	for i, e := range tq.entries {
		if e.sequence == id.sequence {
			tq.entries = append(tq.entries[:i], tq.entries[i+1:]...)
			return
		}
	}
	tq.canceling[id.sequence] = true
}

// handleRead fires on timerfd readability: drain it, collect every entry
// whose expiration has passed, run each callback, then reschedule
// repeating timers that weren't canceled mid-callback.
func (tq *TimerQueue) handleRead(receiveTime timestamp.Timestamp) {
	tq.drainTimerFD()

	expired := tq.getExpired(receiveTime)

	tq.canceling = make(map[int64]bool)
	for _, e := range expired {
		e.timer.run()
	}

	tq.reset(expired, receiveTime)
}

func (tq *TimerQueue) drainTimerFD() {
	var buf [8]byte
	_, _ = unix.Read(tq.timerFD, buf[:])
}

// getExpired extracts every entry with expiration <= now, using the
// sentinel-bound technique zmuduo's TimerQueue uses against its
// std::set: since entries are sorted, everything before the first entry
// whose expiration exceeds now has fired.
func (tq *TimerQueue) getExpired(now timestamp.Timestamp) []timerEntry {
	cut := sort.Search(len(tq.entries), func(i int) bool {
		return tq.entries[i].expiration > now
	})
	expired := append([]timerEntry(nil), tq.entries[:cut]...)
	tq.entries = tq.entries[cut:]
	return expired
}

func (tq *TimerQueue) reset(expired []timerEntry, now timestamp.Timestamp) {
	for _, e := range expired {
		if e.timer.Repeat() && !tq.canceling[e.sequence] {
			e.timer.restart(now)
			tq.insertEntry(timerEntry{expiration: e.timer.expiration, sequence: e.sequence, timer: e.timer})
		}
	}
	if len(tq.entries) > 0 {
		tq.resetTimerFD(tq.entries[0].expiration)
	}
}

// resetTimerFD reprograms the timerfd to fire at expiration, clamping any
// already-past deadline to a minimal positive interval so timerfd_settime
// doesn't interpret a zero/negative duration as "disarm".
func (tq *TimerQueue) resetTimerFD(expiration timestamp.Timestamp) {
	d := expiration.Time().Sub(timestamp.Now().Time())
	const minDelay = 100_000 // 100 microseconds, in nanoseconds
	if d.Nanoseconds() < minDelay {
		d = minDelay
	}
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(tq.timerFD, 0, &spec, nil); err != nil && tq.log != nil {
		tq.log.Errorf("net: timerfd_settime failed: %v", err)
	}
}
