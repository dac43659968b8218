// Package tcp implements the TCP socket transport of the display protocol.
// It provides the base package's connector interfaces for TCP connections and
// applies the TCPConf and SocketConf settings (no delay, keep-alive, linger,
// socket buffer sizes) to dialed and accepted connections.
package tcp
