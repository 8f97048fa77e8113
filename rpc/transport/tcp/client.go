package tcp

import (
	"context"
	"net"
	"time"

	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/ValentinKolb/memKV/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct {
	dialer net.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}
	if err := upgradeConnection(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new TCP client transport
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{
		dialer: net.Dialer{Timeout: 5 * time.Second, KeepAlive: keepAlivePeriod},
	})
}
