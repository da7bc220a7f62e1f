package tcp

import (
	"github.com/ValentinKolb/memDB/rpc/common"
	transporttesting "github.com/ValentinKolb/memDB/rpc/transport/testing"
	"testing"
)

func TestTCPTransport(t *testing.T) {
	transporttesting.RunTransportTests(t, "tcp", func(t *testing.T) transporttesting.Setup {
		addr := transporttesting.FreeTCPAddr(t)
		tcpConf := common.TCPConf{TCPNoDelay: true, TCPKeepAliveSec: 10, TCPLingerSec: -1}
		return transporttesting.Setup{
			Server: NewTCPServerTransport(4*1024, 8),
			Client: NewTCPClientTransport(),
			ServerConfig: common.ServerConfig{
				TimeoutSecond: 5,
				Transport: common.ServerTransportConfig{
					Endpoint: addr,
					TCPConf:  tcpConf,
				},
			},
			ClientConfig: common.ClientConfig{
				TimeoutSecond: 5,
				Transport: common.ClientTransportConfig{
					Endpoints:              []string{addr},
					RetryCount:             2,
					ConnectionsPerEndpoint: 2,
					TCPConf:                tcpConf,
				},
			},
		}
	})
}
