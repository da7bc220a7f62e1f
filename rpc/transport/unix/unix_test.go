package unix

import (
	"github.com/ValentinKolb/memDB/rpc/common"
	transporttesting "github.com/ValentinKolb/memDB/rpc/transport/testing"
	"path/filepath"
	"testing"
)

func TestUnixTransport(t *testing.T) {
	transporttesting.RunTransportTests(t, "unix", func(t *testing.T) transporttesting.Setup {
		socket := filepath.Join(t.TempDir(), "memdb.sock")
		return transporttesting.Setup{
			Server: NewUnixDefaultServerTransport(),
			Client: NewUnixClientTransport(),
			ServerConfig: common.ServerConfig{
				TimeoutSecond: 5,
				Transport: common.ServerTransportConfig{
					Endpoint: socket,
				},
			},
			ClientConfig: common.ClientConfig{
				TimeoutSecond: 5,
				Transport: common.ClientTransportConfig{
					Endpoints: []string{socket},
				},
			},
		}
	})
}
