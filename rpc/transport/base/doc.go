// Package base implements the display connection and server transport
// independent of the specific network protocol (TCP, Unix sockets, etc.).
// Protocol-specific packages only supply a connector.
//
// Wire format:
//
//	Every message is a frame of a 4-byte big endian length followed by a
//	serialized common.Message. The payload codec is selected by name
//	(binary by default, see the serializer package) and must match on both sides.
//
// Client connection:
//
//   - Requests are stamped and written into a buffered writer under a mutex. They
//     reach the socket on Flush, or implicitly before any blocking wait.
//   - The full 64-bit request count is kept in an atomic counter. A sequence whose
//     low 32 bits are 0 is never handed out.
//   - Requests sent with common.FlagExpectsReply or common.FlagChecked get a pending
//     entry, stored in an xsync map for lookup and in an in-flight list for matching.
//   - A single reader goroutine widens the 32-bit sequence of every incoming message.
//     A reply or error for N resolves the entry of N and completes every earlier
//     entry without a result, since the server answers in request order. An event
//     for N completes every entry up to N. Errors without an entry go to the event queue.
//   - Resolved entries stay in the map until they are retrieved, discarded or the
//     connection is closed, so replies can be collected in any order.
//   - ForceCheck sends a GetInputFocus request as a sync point when the completion of
//     a checked request is not yet known.
//
// Server transport:
//
//	Each connection is served by its own goroutine. Requests are handled one after
//	the other, answers are flushed once no further pipelined request is buffered.
//	Read buffers come from a sync.Pool.
package base
