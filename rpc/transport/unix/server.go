package unix

import (
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/ValentinKolb/memDB/rpc/transport/base"
	"net"
	"os"
)

const (
	DefaultBufferSize     = 64 * 1024 // 64 KB
	DefaultWorkersPerConn = 100
)

type serverConnector struct{}

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	socketPath := config.Transport.Endpoint

	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}

	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return upgradeUnix(conn, config.Transport.SocketConf)
}

func upgradeUnix(conn net.Conn, socketConf common.SocketConf) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if socketConf.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(socketConf.WriteBufferSize); err != nil {
			return err
		}
	}
	if socketConf.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(socketConf.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// NewUnixDefaultServerTransport creates a Unix socket server transport with default settings
func NewUnixDefaultServerTransport() transport.IRPCServerTransport {
	return NewUnixServerTransport(DefaultBufferSize, DefaultWorkersPerConn)
}

// NewUnixServerTransport creates a Unix socket server transport
func NewUnixServerTransport(bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, workersPerConn)
}
