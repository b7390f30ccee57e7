package iopoll

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// selectEntry mirrors zmuduo's std::tuple<int, uint32_t>: the fd (possibly
// negated per encodeIgnoredFD when interest is empty) and its interest
// mask.
type selectEntry struct {
	fd     int
	events uint32
}

type selectPoller struct {
	entries []selectEntry
	chans   map[int]FDSource
}

func newSelectPoller() Poller {
	return &selectPoller{chans: make(map[int]FDSource)}
}

func (p *selectPoller) Close() error { return nil }

func (p *selectPoller) Poll(timeoutMs int, active *[]FDSource) (time.Time, error) {
	var readSet, writeSet, exceptSet fdSet
	maxFD := -1
	for _, e := range p.entries {
		fd := e.fd
		if fd < 0 {
			continue
		}
		if e.events&ReadEvents != 0 {
			readSet.set(fd)
		}
		if e.events&WriteEvents != 0 {
			writeSet.set(fd)
		}
		exceptSet.set(fd)
		if fd > maxFD {
			maxFD = fd
		}
	}

	var timeout *unix.Timeval
	if timeoutMs >= 0 {
		tv := unix.NsecToTimeval(int64(timeoutMs) * int64(time.Millisecond))
		timeout = &tv
	}

	n, err := unixSelect(maxFD+1, &readSet, &writeSet, &exceptSet, timeout)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, errors.Wrap(err, "iopoll: select failed")
	}
	p.fillActive(n, active, &readSet, &writeSet, &exceptSet)
	return now, nil
}

func (p *selectPoller) fillActive(numEvents int, active *[]FDSource, readSet, writeSet, exceptSet *fdSet) {
	for _, e := range p.entries {
		if numEvents <= 0 {
			return
		}
		fd := e.fd
		if fd < 0 {
			continue
		}
		ch, ok := p.chans[fd]
		if !ok {
			continue
		}
		var revents uint32
		if readSet.isSet(fd) {
			revents |= EventIn
		}
		if writeSet.isSet(fd) {
			revents |= EventOut
		}
		if exceptSet.isSet(fd) {
			revents |= EventErr
		}
		if revents != 0 {
			ch.SetRevents(revents)
			*active = append(*active, ch)
			numEvents--
		}
	}
}

func (p *selectPoller) UpdateChannel(ch FDSource) error {
	index := ch.PollerIndex()
	if index < 0 {
		p.entries = append(p.entries, selectEntry{fd: ch.FD(), events: ch.InterestEvents()})
		ch.SetPollerIndex(len(p.entries) - 1)
		p.chans[ch.FD()] = ch
		return nil
	}
	e := &p.entries[index]
	e.events = ch.InterestEvents()
	if ch.InterestEvents() == EventNone {
		e.fd = -ch.FD() - 1
	} else {
		e.fd = ch.FD()
	}
	return nil
}

func (p *selectPoller) RemoveChannel(ch FDSource) error {
	index := ch.PollerIndex()
	delete(p.chans, ch.FD())
	last := len(p.entries) - 1
	if index == last {
		p.entries = p.entries[:last]
		ch.SetPollerIndex(-1)
		return nil
	}
	p.entries[index], p.entries[last] = p.entries[last], p.entries[index]
	movedFD := p.entries[index].fd
	if movedFD < 0 {
		movedFD = -movedFD - 1
	}
	if movedCh, ok := p.chans[movedFD]; ok {
		movedCh.SetPollerIndex(index)
	}
	p.entries = p.entries[:last]
	ch.SetPollerIndex(-1)
	return nil
}

func (p *selectPoller) HasChannel(ch FDSource) bool {
	existing, ok := p.chans[ch.FD()]
	return ok && existing == ch
}

// unixSelect wraps unix.Select so Poll's "timeout < 0 blocks indefinitely"
// semantics hold uniformly: passing a nil *unix.Timeval, rather than
// computing tv_usec from a negative timeoutMs (which would underflow), is
// what makes select(2) block forever.
func unixSelect(nfd int, r, w, e *fdSet, timeout *unix.Timeval) (int, error) {
	return unix.Select(nfd, (*unix.FdSet)(r), (*unix.FdSet)(w), (*unix.FdSet)(e), timeout)
}
