package tcp

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/ValentinKolb/xtrl/rpc/transport/base"
	"net"
	"time"
)

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %w", err)
	}

	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return upgradeConnection(conn, config.Transport)
}

// upgradeConnection applies the TCPConf and SocketConf settings to a TCP connection
func upgradeConnection(conn net.Conn, config common.TransportConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}

	if config.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}

	if config.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	if config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		keepAlivePeriod := time.Duration(config.TCPKeepAliveSec) * time.Second
		if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
			return err
		}
	}

	// a negative linger keeps the OS default
	if config.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(config.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport
func NewTCPServerTransport() transport.IServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, defaultBufferSize)
}
