package net

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setThreadName assigns the calling OS thread's name via prctl(PR_SET_NAME),
// the same mechanism pthread_setname_np uses on Linux. The kernel truncates
// names to 15 bytes plus a NUL terminator, so name is truncated to fit.
func setThreadName(name string) error {
	if len(name) > 15 {
		name = name[:15]
	}
	b := append([]byte(name), 0)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}
