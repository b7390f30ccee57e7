package iopoll

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epoll channel states, stored in the FDSource's PollerIndex.
const (
	epollStateNew     = -1
	epollStateAdded   = 1
	epollStateDeleted = 2
)

const initialEventListSize = 16

type epollPoller struct {
	fd     int
	events []unix.EpollEvent
	chans  map[int]FDSource
}

func newEpollPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "iopoll: epoll_create1 failed")
	}
	return &epollPoller{
		fd:     fd,
		events: make([]unix.EpollEvent, initialEventListSize),
		chans:  make(map[int]FDSource),
	}, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.fd)
}

func (p *epollPoller) Poll(timeoutMs int, active *[]FDSource) (time.Time, error) {
	n, err := unix.EpollWait(p.fd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, errors.Wrap(err, "iopoll: epoll_wait failed")
	}
	p.fillActive(n, active)
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return now, nil
}

func (p *epollPoller) fillActive(n int, active *[]FDSource) {
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		ch, ok := p.chans[fd]
		if !ok {
			continue
		}
		ch.SetRevents(p.events[i].Events)
		*active = append(*active, ch)
	}
}

func (p *epollPoller) UpdateChannel(ch FDSource) error {
	index := ch.PollerIndex()
	fd := ch.FD()
	if index == epollStateNew || index == epollStateDeleted {
		if index == epollStateNew {
			p.chans[fd] = ch
		}
		ch.SetPollerIndex(epollStateAdded)
		return p.ctl(unix.EPOLL_CTL_ADD, ch)
	}
	if ch.InterestEvents() == EventNone {
		if err := p.ctl(unix.EPOLL_CTL_DEL, ch); err != nil {
			return err
		}
		ch.SetPollerIndex(epollStateDeleted)
		return nil
	}
	return p.ctl(unix.EPOLL_CTL_MOD, ch)
}

func (p *epollPoller) RemoveChannel(ch FDSource) error {
	fd := ch.FD()
	delete(p.chans, fd)
	if ch.PollerIndex() == epollStateAdded {
		if err := p.ctl(unix.EPOLL_CTL_DEL, ch); err != nil {
			return err
		}
	}
	ch.SetPollerIndex(epollStateNew)
	return nil
}

func (p *epollPoller) HasChannel(ch FDSource) bool {
	existing, ok := p.chans[ch.FD()]
	return ok && existing == ch
}

func (p *epollPoller) ctl(op int, ch FDSource) error {
	event := unix.EpollEvent{
		Events: ch.InterestEvents(),
		Fd:     int32(ch.FD()),
	}
	if err := unix.EpollCtl(p.fd, op, ch.FD(), &event); err != nil {
		if op == unix.EPOLL_CTL_DEL {
			return errors.Wrapf(err, "iopoll: epoll_ctl(DEL) fd=%d", ch.FD())
		}
		return errors.Wrapf(err, "iopoll: epoll_ctl(%d) fd=%d", op, ch.FD())
	}
	return nil
}
