// Package iopoll implements the readiness-multiplexer abstraction the
// event loop polls: a tagged choice of epoll, poll or select backends,
// selected once at construction and sharing no state, mirroring zmuduo's
// Poller/EpollPoller/PollPoller/SelectPoller split.
package iopoll

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// FDSource is the minimal surface a poller needs from whatever object owns
// a file descriptor — satisfied by net.Channel without iopoll importing the
// net package, avoiding an import cycle between the core reactor package
// and its poller backends.
type FDSource interface {
	// FD returns the bound, never-changing file descriptor.
	FD() int
	// InterestEvents returns the current read/write/none interest mask.
	InterestEvents() uint32
	// SetRevents records the events the poller observed as having fired.
	SetRevents(events uint32)
	// PollerIndex returns the opaque state-index the poller maintains for
	// this source (New/Added/Deleted for epoll; vector index for poll and
	// select).
	PollerIndex() int
	// SetPollerIndex stores the poller's new state-index for this source.
	SetPollerIndex(index int)
}

// Backend names one of the three readiness multiplexer implementations.
type Backend int

const (
	// BackendEpoll is the default, Linux-native backend.
	BackendEpoll Backend = iota
	// BackendPoll selects the POSIX poll(2) backend.
	BackendPoll
	// BackendSelect selects the POSIX select(2) backend.
	BackendSelect
)

func (b Backend) String() string {
	switch b {
	case BackendEpoll:
		return "epoll"
	case BackendPoll:
		return "poll"
	case BackendSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Environment variables that steer ResolveBackend, matching the module's
// documented external interface.
const (
	EnvUsePoll   = "ZMUDUO_USE_POLL"
	EnvUseSelect = "ZMUDUO_USE_SELECT"
)

// ResolveBackend inspects ZMUDUO_USE_POLL / ZMUDUO_USE_SELECT and returns
// the backend they select, defaulting to epoll. ZMUDUO_USE_POLL takes
// priority over ZMUDUO_USE_SELECT if both are set.
func ResolveBackend() Backend {
	if _, ok := os.LookupEnv(EnvUsePoll); ok {
		return BackendPoll
	}
	if _, ok := os.LookupEnv(EnvUseSelect); ok {
		return BackendSelect
	}
	return BackendEpoll
}

// Poller is the readiness-multiplexer contract every backend implements.
// Every method must be called from the owning EventLoop's thread.
type Poller interface {
	// Poll blocks up to timeoutMs milliseconds (negative blocks
	// indefinitely) waiting for readiness, appends every FDSource whose
	// interest fired to active, and returns the time it unblocked.
	// Returns immediately with no entries appended on EINTR.
	Poll(timeoutMs int, active *[]FDSource) (time.Time, error)
	// UpdateChannel registers a new FDSource or updates an existing one's
	// interest mask.
	UpdateChannel(ch FDSource) error
	// RemoveChannel deregisters ch, which must currently hold an empty
	// interest mask.
	RemoveChannel(ch FDSource) error
	// HasChannel reports whether ch is the entry currently tracked for its
	// file descriptor.
	HasChannel(ch FDSource) bool
	// Close releases the backend's own file descriptor(s).
	Close() error
}

// New constructs the Poller for the given backend.
func New(backend Backend) (Poller, error) {
	switch backend {
	case BackendEpoll:
		return newEpollPoller()
	case BackendPoll:
		return newPollPoller(), nil
	case BackendSelect:
		return newSelectPoller(), nil
	default:
		return nil, errors.Errorf("iopoll: unknown backend %v", backend)
	}
}

// Channel interest/observed-event bit values. These intentionally reuse the
// numeric values of the Linux EPOLLIN/EPOLLOUT/EPOLLHUP/EPOLLERR/EPOLLPRI/
// EPOLLRDHUP constants (poll(2)'s POLLIN/POLLOUT/POLLHUP/POLLERR share the
// same bit positions on Linux), so a Channel's dispatch logic can treat
// revents uniformly no matter which backend produced them: EpollPoller
// copies epoll_event.events verbatim, PollPoller copies pollfd.revents
// verbatim, and SelectPoller synthesizes the matching bits itself from
// fd_set membership.
const (
	EventIn     uint32 = 0x001
	EventPri    uint32 = 0x002
	EventOut    uint32 = 0x004
	EventErr    uint32 = 0x008
	EventHup    uint32 = 0x010
	EventNVal   uint32 = 0x020
	EventRDHup  uint32 = 0x2000
	EventNone   uint32 = 0
	ReadEvents  uint32 = EventIn | EventPri
	WriteEvents uint32 = EventOut
)
