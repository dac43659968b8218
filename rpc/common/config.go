package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration (shared by client and server)
// --------------------------------------------------------------------------

// SocketConf holds buffer settings applied to every socket
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds settings only applied to tcp sockets
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig groups the socket settings of one endpoint
type TransportConfig struct {
	Endpoint string

	// Name of the frame payload codec (binary, json, gob), both sides must agree
	Serializer string

	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Display server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the reference display server.
type ServerConfig struct {
	Transport TransportConfig

	// Timeout for reads and writes on a client connection, 0 disables it
	TimeoutSecond int64

	// Path of a TOML fault profile, empty for none
	FaultProfile string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Display Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Serializer", orNone(c.Transport.Serializer))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Fault Profile", orNone(c.FaultProfile))

	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("TCP No Delay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for opening a display
type ClientConfig struct {
	Transport TransportConfig

	// Dial and write timeout, 0 disables it. Waits for replies never time out.
	TimeoutSecond int

	// Strict selects checked mode: every void request is validated synchronously
	Strict bool

	// Size of the outgoing request buffer in bytes
	RequestBufferSize int

	// First client side resource id handed out by GenerateID
	ResourceBase uint32

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Serializer", orNone(c.Transport.Serializer))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Strict Mode", fmt.Sprintf("%t", c.Strict))
	addField("Request Buffer", fmt.Sprintf("%d bytes", c.RequestBufferSize))
	addField("Resource Base", fmt.Sprintf("0x%08x", c.ResourceBase))

	addSection("Logging")
	addField("Log Level", orNone(c.LogLevel))

	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
