package tcp

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/ValentinKolb/xtrl/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, timeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeConnection(conn, config.Transport)
}

// --------------------------------------------------------------------------
// Client Connection Factory Method
// --------------------------------------------------------------------------

// NewTCPConnection creates a new unconnected TCP display connection
func NewTCPConnection() transport.IConnection {
	return base.NewBaseConnection(&clientConnector{})
}
