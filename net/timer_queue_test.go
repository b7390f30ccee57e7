package net

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

func TestTimerQueueOrdersByExpirationThenSequence(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	now := timestamp.Now()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		loop.timers.addTimer(func() { order = append(order, i) }, now, 0)
	}

	expired := loop.timers.getExpired(now)
	require.Len(t, expired, 3)
	require.Less(t, expired[0].sequence, expired[1].sequence)
	require.Less(t, expired[1].sequence, expired[2].sequence)
}

func TestTimerCancelDuringCallbackSuppressesReschedule(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	now := timestamp.Now()
	var id TimerID
	runs := 0
	id = loop.timers.addTimer(func() {
		runs++
		loop.timers.cancel(id)
	}, now, 0.01)

	expired := loop.timers.getExpired(now.Add(0.02))
	require.Len(t, expired, 1)

	loop.timers.canceling = make(map[int64]bool)
	for _, e := range expired {
		e.timer.run()
	}
	loop.timers.reset(expired, now.Add(0.02))

	require.Equal(t, 1, runs)
	require.Empty(t, loop.timers.entries, "repeating timer was rescheduled despite mid-callback cancel")
}

func TestTimerCancelRemovesScheduledEntry(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	now := timestamp.Now()
	id := loop.timers.addTimer(func() {}, now.Add(1), 0)
	require.True(t, id.valid())

	loop.timers.cancel(id)
	require.Empty(t, loop.timers.entries)
}
