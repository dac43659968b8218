package transport

import (
	"errors"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"net"
)

// ErrConnClosed is returned by every operation on a connection that was closed locally
var ErrConnClosed = errors.New("connection closed")

// ErrNotPending is returned by ForceCheck for a sequence without a pending entry
var ErrNotPending = errors.New("no pending entry for sequence")

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport for every request of a connection, strictly
// in request order. The client id identifies the connection. The returned messages
// (error or reply first, then events) are written back in order.
type ServerHandleFunc func(client uint64, req *common.Message) []*common.Message

// DisconnectFunc is called by a server transport after a connection is closed
type DisconnectFunc func(client uint64)

// IServerTransport is the interface for the server side of the display protocol
type IServerTransport interface {
	// RegisterHandler registers the request handler of the transport layer
	RegisterHandler(handler ServerHandleFunc)
	// RegisterDisconnectHandler registers a callback invoked when a client goes away
	RegisterDisconnectHandler(handler DisconnectFunc)
	// Listen starts the transport layer and serves connections until Close is called
	Listen(config common.ServerConfig) error
	// ServeConn serves one already established connection until it is closed
	ServeConn(conn net.Conn, config common.ServerConfig)
	// Close stops accepting new connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Connection
// --------------------------------------------------------------------------

// IConnection is one pipelined client connection to a display server.
//
// The connection owns the socket, the outgoing request buffer, the 64-bit request
// counter, the table of pending replies and the event queue. Requests are only
// buffered by SendRequest and go out on Flush (or implicitly before any wait).
// Replies and errors of requests sent with common.FlagExpectsReply or
// common.FlagChecked are held until they are retrieved, discarded or the
// connection is closed, independent of the order of retrieval. Errors of all
// other requests are delivered through the event queue.
type IConnection interface {
	// Connect opens the connection. A dial failure is the connection-level failure.
	Connect(config common.ClientConfig) error
	// HasError returns true once the connection is unusable
	HasError() bool
	// Err returns the reason the connection became unusable, nil while it is healthy
	Err() error
	// Close closes the connection, releasing every pending entry and the event queue.
	// Close is idempotent.
	Close() error

	// SendRequest stamps req with the next sequence number, buffers it and returns the
	// full 64-bit sequence. It returns 0 if the connection is broken. The low 32 bits
	// of a returned sequence are never 0.
	SendRequest(req *common.Message) uint64
	// Flush writes all buffered requests to the socket
	Flush() error

	// PollForEvent returns the next queued event or nil if none is queued
	PollForEvent() *common.Message
	// WaitForEvent blocks until an event is queued or the connection fails
	WaitForEvent() (*common.Message, error)
	// QueueEvent appends a locally created event to the event queue
	QueueEvent(ev *common.Message)

	// PollForReply never blocks. done is false while the outcome of seq is unknown.
	// When done, at most one of reply and errMsg is set; both are nil if nothing will
	// arrive for seq (already retrieved, discarded, never tracked or connection lost).
	PollForReply(seq uint64) (reply, errMsg *common.Message, done bool)
	// WaitForReply blocks until the outcome of seq is known. err is only set if the
	// connection failed before the outcome arrived.
	WaitForReply(seq uint64) (reply, errMsg *common.Message, err error)
	// Discard drops the pending entry of seq, whatever arrives for it is freed
	Discard(seq uint64)
	// ForceCheck blocks until the completion status of the checked request seq is
	// known, sending a sync request if needed. It returns the error of the request, or
	// nil if the request succeeded. ErrNotPending is returned for a sequence that has
	// no pending entry (never checked, already checked or discarded).
	ForceCheck(seq uint64) (*common.Message, error)

	// CurrentSequence returns the sequence of the last request sent, as a full 64-bit count
	CurrentSequence() uint64
}
