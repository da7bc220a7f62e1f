package unix

import (
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/ValentinKolb/memDB/rpc/transport/base"
	"net"
)

type clientConnector struct{}

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}

// UpgradeConnection applies the socket buffer sizes
func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeUnix(conn, config.Transport.SocketConf)
}

// NewUnixClientTransport creates a new Unix socket client transport
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
