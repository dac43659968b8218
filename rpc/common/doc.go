// Package common provides the protocol elements and utilities shared by the
// xtrl client, the transports and the reference display server.
//
// The package focuses on:
//   - The wire message exchanged over a display connection
//   - The body layouts of the supported requests, replies and events
//   - Error and request code tables with bounded name lookups
//   - Sequence widening from the 32-bit wire value to the 64-bit count
//   - Configuration structures for client and server
//   - Custom logging implementation integrated with Dragonboat's logger
//
// Key Components:
//
//   - Message: one packet of the protocol. A request carries an opcode, flags
//     and a body; the server answers with a reply or an error carrying the
//     same sequence, and sends events stamped with the last processed one.
//
//   - ErrorCode and MajorCode: the error and request codes of the core
//     protocol. String returns "Unknown" for every value outside the tables,
//     so decoding a malformed error never fails.
//
//   - GenericError: a decoded protocol error with all six fields. Describe
//     renders them together with the names of both codes.
//
//   - WidenSequence: reconstructs a full sequence given the connection's
//     current count of issued requests.
//
//   - ServerConfig, ClientConfig: configuration for the reference server and
//     the client connection, with String pretty printers.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
