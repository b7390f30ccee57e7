package net

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

type fakeGuard struct{ alive bool }

func (g *fakeGuard) Alive() bool { return g.alive }

func TestChannelDispatchOrderIsCloseErrorReadWrite(t *testing.T) {
	var order []string
	ch := &Channel{}
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetErrorCallback(func() { order = append(order, "error") })
	ch.SetReadCallback(func(timestamp.Timestamp) { order = append(order, "read") })
	ch.SetWriteCallback(func() { order = append(order, "write") })

	// POLLPRI rather than POLLIN drives the read callback: HUP only counts as
	// close when IN is clear.
	ch.SetRevents(uint32(unix.POLLHUP) | uint32(unix.POLLERR) | uint32(unix.POLLPRI) | uint32(unix.POLLOUT))
	ch.handleEventWithGuard(timestamp.Now())

	require.Equal(t, []string{"close", "error", "read", "write"}, order)
}

func TestChannelSkipsDispatchWhenTiedGuardIsDead(t *testing.T) {
	var called bool
	ch := &Channel{}
	ch.SetReadCallback(func(timestamp.Timestamp) { called = true })
	ch.SetRevents(uint32(unix.POLLIN))

	guard := &fakeGuard{alive: false}
	ch.Tie(guard)

	ch.HandleEvent(timestamp.Now())
	require.False(t, called, "callback ran despite dead guard")

	guard.alive = true
	ch.HandleEvent(timestamp.Now())
	require.True(t, called, "callback did not run once guard became alive")
}

func TestChannelHupWithInIsNotTreatedAsClose(t *testing.T) {
	var closeCalled, readCalled bool
	ch := &Channel{}
	ch.SetCloseCallback(func() { closeCalled = true })
	ch.SetReadCallback(func(timestamp.Timestamp) { readCalled = true })
	ch.SetRevents(uint32(unix.POLLHUP) | uint32(unix.POLLIN))

	ch.handleEventWithGuard(timestamp.Now())

	require.False(t, closeCalled)
	require.True(t, readCalled)
}

func TestChannelEnableDisableTogglesInterestAndPokesLoop(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() { unix.Close(fds[0]); unix.Close(fds[1]) })

	ch := NewChannel(loop, fds[0])
	require.False(t, ch.IsReading())

	ch.EnableReading()
	require.True(t, ch.IsReading())
	require.True(t, loop.hasChannel(ch))

	ch.DisableAll()
	require.True(t, ch.IsNoneEvent())

	ch.Remove()
}

func TestEventLoopDispatchesChannelReadEvent(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() { unix.Close(fds[0]); unix.Close(fds[1]) })

	received := make(chan struct{}, 1)
	ch := NewChannel(loop, fds[0])
	ch.SetReadCallback(func(timestamp.Timestamp) { received <- struct{}{} })
	ch.EnableReading()

	runLoopInBackground(t, loop)

	_, err = unix.Write(fds[1], []byte("hi"))
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("read callback never fired")
	}
}
