package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPrependInvariant(t *testing.T) {
	b := New()
	require.Equal(t, InitialPrependSize, b.PrependableBytes())
	require.Equal(t, 0, b.ReadableBytes())
	require.Equal(t, InitialSize, b.WritableBytes())
}

func TestAppendRetrieve(t *testing.T) {
	b := New()
	b.AppendString("hello")
	require.Equal(t, 5, b.ReadableBytes())
	require.Equal(t, "hello", string(b.Peek()))

	b.Retrieve(2)
	require.Equal(t, "llo", string(b.Peek()))

	require.Equal(t, "llo", b.RetrieveAllAsString())
	require.Equal(t, 0, b.ReadableBytes())
}

func TestFindCRLF(t *testing.T) {
	b := New()
	b.AppendString("GET / HTTP/1.1\r\nHost: x\r\n")
	idx := b.FindCRLF()
	require.Equal(t, 14, idx)
}

func TestRetrieveUntil(t *testing.T) {
	b := New()
	b.AppendString("line1\r\nrest")
	readable := b.Peek()
	crlfIdx := b.FindCRLF()
	b.RetrieveUntil(readable[crlfIdx:])
	require.Equal(t, "\r\nrest", string(b.Peek()))
}

func TestGrowsBeyondInitialCapacity(t *testing.T) {
	b := New()
	big := make([]byte, InitialSize*3)
	for i := range big {
		big[i] = byte(i)
	}
	b.Append(big)
	require.Equal(t, len(big), b.ReadableBytes())
	require.Equal(t, big, b.Peek())
}

func TestCompactsInPlaceWhenRoomFreedByRetrieve(t *testing.T) {
	b := New()
	b.Append(make([]byte, InitialSize))
	b.Retrieve(InitialSize - 10)
	// Only 10 bytes readable but plenty of prependable+writable space
	// combined; appending slightly more than writable should compact
	// rather than reallocate.
	before := cap(b.data)
	b.Append(make([]byte, 20))
	require.Equal(t, before, cap(b.data))
	require.Equal(t, 30, b.ReadableBytes())
}

func TestReadFDScatterRead(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	payload := make([]byte, InitialSize+100)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	go func() {
		_, _ = unix.Write(fds[1], payload)
	}()

	b := New()
	total := 0
	for total < len(payload) {
		n, err := b.ReadFD(fds[0])
		require.NoError(t, err)
		total += n
	}
	require.Equal(t, payload, b.Peek())
}

func TestReadFDOrderlyShutdown(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	require.NoError(t, unix.Close(fds[1]))
	defer unix.Close(fds[0])

	b := New()
	_, err := b.ReadFD(fds[0])
	require.ErrorIs(t, err, ErrShortRead)
}

func TestPrependWritesBeforeReadable(t *testing.T) {
	b := New()
	b.AppendString("body")
	b.Prepend([]byte{0, 0, 0, 4})
	require.Equal(t, []byte{0, 0, 0, 4, 'b', 'o', 'd', 'y'}, b.Peek())
}
