// Package rpc provides the wire layer of the display protocol toolkit. It carries
// requests from a client to a display server and replies, errors and events back.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the wire layer,
//     including the Message frame, opcodes and error codes, sequence widening,
//     request payload codecs, configuration structures and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets). The base implementation assigns sequence numbers and
//     demultiplexes the incoming stream of a pipelined connection.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - server: In-memory reference display server. It keeps a window tree and an
//     atom table, routes requests to adapters by opcode and can inject errors from
//     a fault profile.
//
// The client side API (cookies, waiting, checked requests and error dispatch)
// lives in lib/trl.
package rpc
