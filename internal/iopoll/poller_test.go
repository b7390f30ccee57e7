package iopoll

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// testSource is a minimal FDSource used to exercise each backend without
// pulling in the net package (which would create an import cycle).
type testSource struct {
	fd       int
	interest uint32
	revents  uint32
	index    int
}

func newTestSource(fd int) *testSource { return &testSource{fd: fd, index: -1} }

func (s *testSource) FD() int                 { return s.fd }
func (s *testSource) InterestEvents() uint32  { return s.interest }
func (s *testSource) SetRevents(e uint32)     { s.revents = e }
func (s *testSource) PollerIndex() int        { return s.index }
func (s *testSource) SetPollerIndex(i int)    { s.index = i }

func TestResolveBackendDefaultsToEpoll(t *testing.T) {
	require.NoError(t, os.Unsetenv(EnvUsePoll))
	require.NoError(t, os.Unsetenv(EnvUseSelect))
	require.Equal(t, BackendEpoll, ResolveBackend())
}

func TestResolveBackendUsePoll(t *testing.T) {
	t.Setenv(EnvUsePoll, "1")
	require.Equal(t, BackendPoll, ResolveBackend())
}

func TestResolveBackendUseSelectWhenPollUnset(t *testing.T) {
	require.NoError(t, os.Unsetenv(EnvUsePoll))
	t.Setenv(EnvUseSelect, "1")
	require.Equal(t, BackendSelect, ResolveBackend())
}

func TestResolveBackendPollTakesPriority(t *testing.T) {
	t.Setenv(EnvUsePoll, "1")
	t.Setenv(EnvUseSelect, "1")
	require.Equal(t, BackendPoll, ResolveBackend())
}

func TestEachBackendDeliversReadReadiness(t *testing.T) {
	for _, backend := range []Backend{BackendEpoll, BackendPoll, BackendSelect} {
		backend := backend
		t.Run(backend.String(), func(t *testing.T) {
			p, err := New(backend)
			require.NoError(t, err)
			defer p.Close()

			var fds [2]int
			require.NoError(t, unix.Pipe(fds[:]))
			defer unix.Close(fds[0])
			defer unix.Close(fds[1])

			src := newTestSource(fds[0])
			src.interest = ReadEvents
			require.NoError(t, p.UpdateChannel(src))
			require.True(t, p.HasChannel(src))

			_, err = unix.Write(fds[1], []byte("x"))
			require.NoError(t, err)

			var active []FDSource
			_, err = p.Poll(1000, &active)
			require.NoError(t, err)
			require.Len(t, active, 1)
			require.Equal(t, src, active[0])
			require.NotZero(t, src.revents&EventIn)

			src.interest = EventNone
			require.NoError(t, p.UpdateChannel(src))
			require.NoError(t, p.RemoveChannel(src))
			require.False(t, p.HasChannel(src))
		})
	}
}

func TestPollAndSelectSwapPopRemoval(t *testing.T) {
	for _, backend := range []Backend{BackendPoll, BackendSelect} {
		backend := backend
		t.Run(backend.String(), func(t *testing.T) {
			p, err := New(backend)
			require.NoError(t, err)
			defer p.Close()

			var pipes [3][2]int
			var sources [3]*testSource
			for i := range pipes {
				require.NoError(t, unix.Pipe(pipes[i][:]))
				defer unix.Close(pipes[i][0])
				defer unix.Close(pipes[i][1])
				sources[i] = newTestSource(pipes[i][0])
				sources[i].interest = ReadEvents
				require.NoError(t, p.UpdateChannel(sources[i]))
			}

			// Remove the middle entry; the last entry should be swapped
			// into its slot and have its PollerIndex updated to match.
			sources[1].interest = EventNone
			require.NoError(t, p.UpdateChannel(sources[1]))
			require.NoError(t, p.RemoveChannel(sources[1]))

			require.True(t, p.HasChannel(sources[0]))
			require.True(t, p.HasChannel(sources[2]))

			_, err = unix.Write(pipes[2][1], []byte("y"))
			require.NoError(t, err)

			var active []FDSource
			_, err = p.Poll(1000, &active)
			require.NoError(t, err)
			require.Len(t, active, 1)
			require.Equal(t, sources[2], active[0])
		})
	}
}
