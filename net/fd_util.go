package net

import (
	stdnet "net"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// listenerFD recovers a raw file descriptor from a stdlib net.Listener
// (what reuseport.Listen returns) via its syscall.RawConn, duplicating it
// close-on-exec so Acceptor can drive accept4 directly against our own
// Poller instead of going through Go's runtime netpoller. F_DUPFD_CLOEXEC
// is used instead of plain dup(2)/unix.Dup, which does not carry
// FD_CLOEXEC over to the new descriptor.
func listenerFD(ln stdnet.Listener) (int, error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return 0, errors.New("net: listener does not expose a raw file descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, errors.Wrap(err, "net: SyscallConn failed")
	}

	var fd int
	var dupErr error
	err = raw.Control(func(p uintptr) {
		fd, dupErr = unix.FcntlInt(p, unix.F_DUPFD_CLOEXEC, 0)
	})
	if err != nil {
		return 0, errors.Wrap(err, "net: raw.Control failed")
	}
	if dupErr != nil {
		return 0, errors.Wrap(dupErr, "net: dup failed")
	}
	return fd, nil
}
