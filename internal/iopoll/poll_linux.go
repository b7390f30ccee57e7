package iopoll

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type pollPoller struct {
	fds   []unix.PollFd
	chans map[int]FDSource
}

func newPollPoller() Poller {
	return &pollPoller{chans: make(map[int]FDSource)}
}

func (p *pollPoller) Close() error { return nil }

func (p *pollPoller) Poll(timeoutMs int, active *[]FDSource) (time.Time, error) {
	n, err := unix.Poll(p.fds, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, errors.Wrap(err, "iopoll: poll failed")
	}
	p.fillActive(n, active)
	return now, nil
}

func (p *pollPoller) fillActive(numEvents int, active *[]FDSource) {
	for _, pfd := range p.fds {
		if numEvents <= 0 {
			return
		}
		if pfd.Revents == 0 {
			continue
		}
		fd := realFD(pfd.Fd)
		ch, ok := p.chans[fd]
		if !ok {
			continue
		}
		ch.SetRevents(uint32(pfd.Revents))
		*active = append(*active, ch)
		numEvents--
	}
}

func (p *pollPoller) UpdateChannel(ch FDSource) error {
	index := ch.PollerIndex()
	if index < 0 {
		p.fds = append(p.fds, unix.PollFd{
			Fd:     int32(ch.FD()),
			Events: int16(ch.InterestEvents()),
		})
		ch.SetPollerIndex(len(p.fds) - 1)
		p.chans[ch.FD()] = ch
		return nil
	}
	pfd := &p.fds[index]
	pfd.Events = int16(ch.InterestEvents())
	pfd.Revents = 0
	if ch.InterestEvents() == EventNone {
		pfd.Fd = encodeIgnoredFD(ch.FD())
	} else {
		pfd.Fd = int32(ch.FD())
	}
	return nil
}

func (p *pollPoller) RemoveChannel(ch FDSource) error {
	index := ch.PollerIndex()
	delete(p.chans, ch.FD())
	last := len(p.fds) - 1
	if index == last {
		p.fds = p.fds[:last]
		ch.SetPollerIndex(-1)
		return nil
	}
	p.fds[index], p.fds[last] = p.fds[last], p.fds[index]
	movedFD := realFD(p.fds[index].Fd)
	if movedCh, ok := p.chans[movedFD]; ok {
		movedCh.SetPollerIndex(index)
	}
	p.fds = p.fds[:last]
	ch.SetPollerIndex(-1)
	return nil
}

func (p *pollPoller) HasChannel(ch FDSource) bool {
	existing, ok := p.chans[ch.FD()]
	return ok && existing == ch
}

// encodeIgnoredFD negates-and-offsets fd so a pollfd entry with no
// interest stays addressable by index but is ignored by the kernel poll
// call (poll(2) skips any fd < 0).
func encodeIgnoredFD(fd int) int32 {
	return int32(-fd - 1)
}

// realFD undoes encodeIgnoredFD so callers can recover the real fd from a
// possibly-ignored pollfd entry.
func realFD(fd int32) int {
	if fd < 0 {
		return int(-fd - 1)
	}
	return int(fd)
}
