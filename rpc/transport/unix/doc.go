// Package unix implements the Unix domain socket transport of the display
// protocol, the usual choice for a display server on the same machine.
//
// The server removes a stale socket file before listening.
package unix
