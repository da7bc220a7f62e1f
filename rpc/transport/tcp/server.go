package tcp

import (
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/ValentinKolb/memDB/rpc/transport/base"
	"net"
	"time"
)

const (
	DefaultBufferSize     = 512 * 1024 // 512 KB
	DefaultWorkersPerConn = 100
)

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
	return upgradeTCP(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}

// upgradeTCP applies the socket and TCP settings to a connection, other connection types are left untouched
func upgradeTCP(conn net.Conn, socketConf common.SocketConf, tcpConf common.TCPConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(tcpConf.TCPNoDelay); err != nil {
		return err
	}

	if socketConf.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(socketConf.WriteBufferSize); err != nil {
			return err
		}
	}

	if socketConf.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(socketConf.ReadBufferSize); err != nil {
			return err
		}
	}

	if tcpConf.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(tcpConf.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	// A negative linger keeps the OS default
	if tcpConf.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(tcpConf.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// NewTCPDefaultServerTransport creates a TCP server transport with default buffer size and worker count
func NewTCPDefaultServerTransport() transport.IRPCServerTransport {
	return NewTCPServerTransport(DefaultBufferSize, DefaultWorkersPerConn)
}

// NewTCPServerTransport creates a TCP server transport
func NewTCPServerTransport(bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, workersPerConn)
}
