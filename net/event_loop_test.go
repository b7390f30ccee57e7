package net

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop, err := NewEventLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}

func runLoopInBackground(t *testing.T, loop *EventLoop) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Loop()
	}()
	t.Cleanup(func() {
		loop.Quit()
		<-done
	})
}

func TestQueueInLoopWakesBlockedLoopFromAnotherGoroutine(t *testing.T) {
	loop := newTestLoop(t)
	runLoopInBackground(t, loop)

	var ran int32
	done := make(chan struct{})
	loop.QueueInLoop(func() {
		atomic.StoreInt32(&ran, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued functor never ran")
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestRunInLoopFromAnotherGoroutineRunsOnOwningGoroutine(t *testing.T) {
	loop := newTestLoop(t)
	done := make(chan struct{})
	go func() {
		loop.Loop()
		close(done)
	}()

	// Give the loop a moment to start and bind its thread id.
	waitUntil(t, func() bool { return atomic.LoadInt32(&loop.looping) == 1 }, time.Second)

	var insideCalled bool
	result := make(chan bool, 1)
	loop.RunInLoop(func() {
		result <- loop.IsInLoopThread()
	})
	select {
	case insideCalled = <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("RunInLoop functor never ran")
	}
	require.True(t, insideCalled)

	loop.Quit()
	<-done
}

func waitUntil(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunAfterFiresOnce(t *testing.T) {
	loop := newTestLoop(t)
	runLoopInBackground(t, loop)

	fired := make(chan struct{}, 2)
	loop.RunAfter(10*time.Millisecond, func() {
		fired <- struct{}{}
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	select {
	case <-fired:
		t.Fatal("one-shot timer fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunEveryRepeatsUntilCanceled(t *testing.T) {
	loop := newTestLoop(t)
	runLoopInBackground(t, loop)

	var count int32
	var id TimerID
	fireThreshold := make(chan struct{})
	loop.RunInLoop(func() {
		id = loop.RunEvery(5*time.Millisecond, func() {
			if atomic.AddInt32(&count, 1) == 3 {
				close(fireThreshold)
			}
		})
	})

	select {
	case <-fireThreshold:
	case <-time.After(2 * time.Second):
		t.Fatal("repeating timer did not fire 3 times")
	}
	loop.Cancel(id)

	time.Sleep(20 * time.Millisecond)
	snapshot := atomic.LoadInt32(&count)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, snapshot, atomic.LoadInt32(&count), "timer kept firing after cancel")
}
