package iopoll

import "golang.org/x/sys/unix"

// fdSet is a defined type over unix.FdSet carrying the set/isSet helpers
// the select backend uses; the bit layout matches the kernel's fd_set (an array of
// word-sized bitmaps).
type fdSet unix.FdSet

const bitsPerWord = 64

func (s *fdSet) set(fd int) {
	s.Bits[fd/bitsPerWord] |= 1 << (uint(fd) % bitsPerWord)
}

func (s *fdSet) isSet(fd int) bool {
	return s.Bits[fd/bitsPerWord]&(1<<(uint(fd)%bitsPerWord)) != 0
}
