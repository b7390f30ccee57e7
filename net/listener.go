package net

import (
	stdnet "net"

	"github.com/libp2p/go-reuseport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/nichijoux/zmuduo-go/internal/zlog"
	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

// NewConnectionCallback hands an Acceptor's owner a freshly accepted
// connection fd and its peer address; the callback is responsible for
// wrapping fd into a Connection (out of this module's scope — see
// Connection) and assigning it to a loop, typically one pulled from an
// EventLoopThreadPool.
type NewConnectionCallback func(fd int, peer stdnet.Addr)

// Acceptor listens on one address, via an SO_REUSEPORT listener so
// multiple Acceptors (one per loop) can share a port, and dispatches
// every accepted connection back to its owning loop.
type Acceptor struct {
	loop     *EventLoop
	listener stdnet.Listener
	listenFD int
	channel  *Channel
	newConnCb NewConnectionCallback
	log      zlog.Logger

	idleFD int // a pre-opened fd held in reserve for the EMFILE/ENFILE workaround
}

// NewAcceptor creates a listener for network/addr (e.g. "tcp", "0.0.0.0:9000")
// using go-reuseport so the caller may construct one Acceptor per loop in
// a thread pool, each independently accepting off the same port.
func NewAcceptor(loop *EventLoop, network, addr string, log zlog.Logger) (*Acceptor, error) {
	if log == nil {
		log = zlog.Nop()
	}
	ln, err := reuseport.Listen(network, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "net: reuseport.Listen(%s, %s)", network, addr)
	}
	fd, err := listenerFD(ln)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	idleFD, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		idleFD = -1
	}

	a := &Acceptor{
		loop:     loop,
		listener: ln,
		listenFD: fd,
		log:      log,
		idleFD:   idleFD,
	}
	a.channel = NewChannel(loop, fd)
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// SetNewConnectionCallback installs the callback invoked for every
// accepted connection.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) { a.newConnCb = cb }

// Listen enables accept-readiness on the loop. Must be called from the
// owning loop's goroutine.
func (a *Acceptor) Listen() {
	a.channel.EnableReading()
}

// Close stops accepting and releases the listener's resources. Must be
// called from the owning loop's goroutine.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	_ = unix.Close(a.listenFD)
	if a.idleFD >= 0 {
		_ = unix.Close(a.idleFD)
	}
	return a.listener.Close()
}

func (a *Acceptor) handleRead(timestamp.Timestamp) {
	for {
		connFD, sa, err := unix.Accept4(a.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				a.handleFileDescriptorExhaustion(err)
				return
			}
			a.log.Errorf("net: accept4 failed: %v", err)
			return
		}
		if a.newConnCb != nil {
			a.newConnCb(connFD, sockaddrToAddr(sa))
		} else {
			_ = unix.Close(connFD)
		}
	}
}

// handleFileDescriptorExhaustion implements the classic muduo workaround:
// close a reserved idle fd to free one descriptor, accept-and-immediately-
// drop the pending connection so it doesn't spin epoll in a busy loop,
// then reopen the idle fd.
func (a *Acceptor) handleFileDescriptorExhaustion(cause error) {
	a.log.Errorf("net: accept4 exhausted file descriptors: %v", cause)
	if a.idleFD < 0 {
		return
	}
	_ = unix.Close(a.idleFD)
	fd, _, err := unix.Accept4(a.listenFD, unix.SOCK_CLOEXEC)
	if err == nil {
		_ = unix.Close(fd)
	}
	a.idleFD, _ = unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
}

func sockaddrToAddr(sa unix.Sockaddr) stdnet.Addr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &stdnet.TCPAddr{IP: s.Addr[:], Port: s.Port}
	case *unix.SockaddrInet6:
		return &stdnet.TCPAddr{IP: s.Addr[:], Port: s.Port}
	default:
		return nil
	}
}
