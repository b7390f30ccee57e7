package net

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThreadPoolRoundRobinCyclesThroughAllLoops(t *testing.T) {
	base := newTestLoop(t)
	pool := NewEventLoopThreadPool(base, "worker-", nil)
	pool.SetThreadNum(3)
	pool.Start(nil)
	t.Cleanup(func() {
		for _, l := range pool.GetAllLoops() {
			l.Quit()
			_ = l.Close()
		}
	})

	seen := make([]*EventLoop, 6)
	for i := range seen {
		seen[i] = pool.GetNextLoop()
	}

	require.Equal(t, seen[0], seen[3])
	require.Equal(t, seen[1], seen[4])
	require.Equal(t, seen[2], seen[5])
	require.NotEqual(t, seen[0], seen[1])
	require.NotEqual(t, seen[1], seen[2])
}

func TestThreadPoolWithZeroWorkersAlwaysReturnsBaseLoop(t *testing.T) {
	base := newTestLoop(t)
	pool := NewEventLoopThreadPool(base, "worker-", nil)
	pool.Start(nil)

	require.Equal(t, base, pool.GetNextLoop())
	require.Equal(t, base, pool.GetNextLoop())
	require.Equal(t, []*EventLoop{base}, pool.GetAllLoops())
}
