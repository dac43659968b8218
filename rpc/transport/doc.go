// Package transport defines the interfaces between the display client core and
// the network. It provides a common contract that all transport implementations
// must fulfill, so the core never depends on a concrete socket type.
//
// Key Components:
//
//   - IConnection: One pipelined client connection. It stamps every request with
//     the next sequence number, buffers it, and demultiplexes the incoming stream
//     into held replies and errors (correlated by sequence) and an event queue.
//
//   - IServerTransport: Server side counterpart. It reads requests of a connection
//     strictly in order and writes back whatever the ServerHandleFunc returns.
//
//   - ErrConnClosed: Returned by every operation after the connection was closed locally.
package transport
