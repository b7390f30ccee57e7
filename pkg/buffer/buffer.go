// Package buffer implements a growable byte buffer split into three
// contiguous regions — prepend, readable and writable — following the
// classic muduo/zmuduo Buffer layout: reserved header space at the front so
// callers can backfill a length prefix without a second allocation, a
// readable span consumers drain from, and a writable tail producers append
// to.
package buffer

import (
	"bytes"
	"errors"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

const (
	// InitialPrependSize is the header space reserved at the front of every
	// new Buffer, per the spec's "prepend >= 8 bytes reserved" invariant.
	InitialPrependSize = 8
	// InitialSize is the default writable capacity of a freshly created
	// Buffer.
	InitialSize = 1024
	// extensionBufferSize is the size of the stack/pool extension buffer
	// readFD uses to absorb bytes beyond the buffer's current writable
	// tail, so a single readv syscall covers an MTU-sized datagram even
	// when the buffer itself hasn't grown that large yet.
	extensionBufferSize = 65536
)

var crlf = []byte("\r\n")

// Buffer is a growable, non-thread-safe byte buffer. Invariant:
// readerIndex (the prependable bytes) + readable length + writable length
// == len(data).
type Buffer struct {
	data        []byte
	readerIndex int
	writerIndex int
}

// New creates an empty Buffer with the default initial capacity.
func New() *Buffer {
	return NewSize(InitialSize)
}

// NewSize creates an empty Buffer whose writable region can initially hold
// size bytes without growing.
func NewSize(size int) *Buffer {
	b := &Buffer{
		data: make([]byte, InitialPrependSize+size),
	}
	b.readerIndex = InitialPrependSize
	b.writerIndex = InitialPrependSize
	return b
}

// ReadableBytes returns the number of bytes available to a reader.
func (b *Buffer) ReadableBytes() int {
	return b.writerIndex - b.readerIndex
}

// WritableBytes returns the number of free bytes in the tail.
func (b *Buffer) WritableBytes() int {
	return len(b.data) - b.writerIndex
}

// PrependableBytes returns the number of bytes currently reserved at the
// front of the buffer (available for Prepend).
func (b *Buffer) PrependableBytes() int {
	return b.readerIndex
}

// Peek returns the readable region without consuming it. The returned slice
// aliases the Buffer's storage and is invalidated by any mutating call.
func (b *Buffer) Peek() []byte {
	return b.data[b.readerIndex:b.writerIndex]
}

// FindCRLF returns the index (relative to Peek()) of the first "\r\n" in
// the readable region, or -1 if none is present.
func (b *Buffer) FindCRLF() int {
	idx := bytes.Index(b.Peek(), crlf)
	return idx
}

// Retrieve consumes n bytes from the front of the readable region. It is a
// no-op if n <= 0 and clamps to ReadableBytes() if n exceeds it.
func (b *Buffer) Retrieve(n int) {
	if n <= 0 {
		return
	}
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.readerIndex += n
}

// RetrieveAll discards the entire readable region and resets both indices
// back to the start of the prepend-sized header area.
func (b *Buffer) RetrieveAll() {
	b.readerIndex = InitialPrependSize
	b.writerIndex = InitialPrependSize
}

// RetrieveUntil consumes bytes up to (but not including) end, which must
// point within the current Peek() slice.
func (b *Buffer) RetrieveUntil(end []byte) {
	readable := b.Peek()
	n := len(readable) - len(end)
	if n < 0 {
		n = len(readable)
	}
	b.Retrieve(n)
}

// RetrieveAsString consumes and returns n bytes from the readable region as
// a freshly allocated string.
func (b *Buffer) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.data[b.readerIndex : b.readerIndex+n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString consumes and returns the entire readable region as a
// freshly allocated string.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// HasWritten records that n bytes were already copied directly into the
// writable tail (e.g. by a caller that peeked WritableSlice) and advances
// the writer index accordingly.
func (b *Buffer) HasWritten(n int) {
	b.writerIndex += n
}

// UnwriteBytes walks the writer index back by n, "undoing" a write. Used
// when a caller over-estimated how much it would append.
func (b *Buffer) UnwriteBytes(n int) {
	b.writerIndex -= n
}

// WritableSlice exposes the current writable tail for a caller that wants
// to write into it directly (followed by HasWritten). The returned slice
// aliases the Buffer's storage and is invalidated by any mutating call.
func (b *Buffer) WritableSlice() []byte {
	return b.data[b.writerIndex:]
}

// Append copies data into the writable tail, growing the buffer first if
// necessary.
func (b *Buffer) Append(data []byte) {
	if b.WritableBytes() < len(data) {
		b.makeSpace(len(data))
	}
	n := copy(b.data[b.writerIndex:], data)
	b.writerIndex += n
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// Prepend writes data immediately before the current readable region,
// consuming prepend space. It panics if there isn't enough prepend space —
// callers are expected to reserve headers up front via InitialPrependSize.
func (b *Buffer) Prepend(data []byte) {
	if len(data) > b.PrependableBytes() {
		panic("buffer: not enough prependable space")
	}
	b.readerIndex -= len(data)
	copy(b.data[b.readerIndex:], data)
}

// makeSpace grows the buffer so that at least `need` bytes are writable,
// either by compacting (shifting the readable region back to the start of
// the header area) or by reallocating with doubled capacity.
func (b *Buffer) makeSpace(need int) {
	if b.WritableBytes()+b.PrependableBytes()-InitialPrependSize >= need {
		// Compact: slide the readable bytes down to right after the
		// reserved prepend area instead of growing.
		readable := b.ReadableBytes()
		copy(b.data[InitialPrependSize:], b.data[b.readerIndex:b.writerIndex])
		b.readerIndex = InitialPrependSize
		b.writerIndex = b.readerIndex + readable
		return
	}
	newCap := len(b.data)
	if newCap == 0 {
		newCap = InitialPrependSize + InitialSize
	}
	for newCap-b.writerIndex < need {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.writerIndex])
	b.data = grown
}

// ErrShortRead is returned by ReadFD if the underlying read returned zero
// bytes with no error — i.e. the peer performed an orderly shutdown.
var ErrShortRead = errors.New("buffer: peer closed connection")

// ReadFD performs a single scatter read from fd: one iovec targets the
// buffer's current writable tail, a second targets a pooled extension
// buffer, so that a read larger than the buffer's current free space is
// still serviced in one syscall. Returns the number of bytes appended to
// the buffer (the extension-buffer portion, if any, is copied in via
// Append before returning).
func (b *Buffer) ReadFD(fd int) (int, error) {
	writable := b.WritableSlice()

	extra := bytebufferpool.Get()
	defer bytebufferpool.Put(extra)
	if cap(extra.B) < extensionBufferSize {
		extra.B = make([]byte, extensionBufferSize)
	} else {
		extra.B = extra.B[:extensionBufferSize]
	}

	iovecs := [][]byte{writable, extra.B}
	n, err := unix.Readv(fd, iovecs)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrShortRead
	}

	if n <= len(writable) {
		b.HasWritten(n)
		return n, nil
	}

	b.HasWritten(len(writable))
	spillover := n - len(writable)
	b.Append(extra.B[:spillover])
	return n, nil
}
