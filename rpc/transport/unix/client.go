package unix

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/ValentinKolb/xtrl/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, timeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Client Connection Factory Method
// --------------------------------------------------------------------------

// NewUnixConnection creates a new unconnected Unix socket display connection
func NewUnixConnection() transport.IConnection {
	return base.NewBaseConnection(&clientConnector{})
}
