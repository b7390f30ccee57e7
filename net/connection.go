package net

import (
	"github.com/nichijoux/zmuduo-go/pkg/buffer"
	"github.com/nichijoux/zmuduo-go/pkg/timestamp"
)

// ConnectionState is the lifecycle state of a Connection, mirrored from
// zmuduo's TcpConnection state machine.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// MessageCallback is invoked with every chunk of bytes a Connection reads
// off the wire, via the shared Buffer so a protocol codec can retrieve
// exactly as much as it needs and leave the rest for the next call.
type MessageCallback func(conn Connection, buf *buffer.Buffer, receiveTime timestamp.Timestamp)

// WriteCompleteCallback fires once a Connection's outgoing buffer has
// fully drained after a Send call that could not complete synchronously.
type WriteCompleteCallback func(conn Connection)

// ConnectionCallback fires on every state transition (established,
// disconnecting) a Connection makes.
type ConnectionCallback func(conn Connection)

// Connection is the contract a transport-level connection must satisfy;
// concrete TCP/TLS/codec implementations are out of scope for this
// module, which supplies only the EventLoop-integrated plumbing
// (Channel, buffering, offload) such implementations are built from.
type Connection interface {
	// Loop returns the EventLoop this connection is bound to. Every other
	// method must only be called from that loop's goroutine, except Send
	// and ForceClose which may be called from any goroutine.
	Loop() *EventLoop

	// Send queues data for asynchronous write. Safe to call from any
	// goroutine; hops to the owning loop via RunInLoop if necessary.
	Send(data []byte)

	// ForceClose tears the connection down immediately. Safe to call
	// from any goroutine.
	ForceClose()

	// State reports the connection's current lifecycle state.
	State() ConnectionState

	// SetMessageCallback installs the callback invoked on every read.
	SetMessageCallback(cb MessageCallback)

	// SetWriteCompleteCallback installs the callback invoked once a
	// deferred write fully drains.
	SetWriteCompleteCallback(cb WriteCompleteCallback)

	// SetConnectionCallback installs the callback invoked on state
	// transitions.
	SetConnectionCallback(cb ConnectionCallback)
}
