package http

import (
	"bytes"
	"github.com/ValentinKolb/memDB/rpc/common"
	transporttesting "github.com/ValentinKolb/memDB/rpc/transport/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"testing"
)

func TestHTTPTransport(t *testing.T) {
	transporttesting.RunTransportTests(t, "http", func(t *testing.T) transporttesting.Setup {
		addr := transporttesting.FreeTCPAddr(t)
		return transporttesting.Setup{
			Server: NewHttpServerTransport(),
			Client: NewHttpClientTransport(),
			ServerConfig: common.ServerConfig{
				LogLevel: "debug",
				Transport: common.ServerTransportConfig{
					Endpoint: addr,
				},
			},
			ClientConfig: common.ClientConfig{
				TimeoutSecond: 5,
				Transport: common.ClientTransportConfig{
					Endpoints:  []string{addr},
					RetryCount: 2,
				},
			},
		}
	})
}

func TestInvalidShardId(t *testing.T) {
	addr := transporttesting.FreeTCPAddr(t)
	setup := transporttesting.Setup{
		Server:       NewHttpServerTransport(),
		Client:       NewHttpClientTransport(),
		ServerConfig: common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: addr}},
		ClientConfig: common.ClientConfig{
			TimeoutSecond: 5,
			Transport:     common.ClientTransportConfig{Endpoints: []string{"http://" + addr + "/"}},
		},
	}
	transporttesting.StartServer(t, setup,
		func(shardId uint64, req []byte) []byte { return req },
		func(shardId uint64, req []byte, send func([]byte) error) error { return nil },
	)

	resp, err := http.Post("http://"+addr+"/not-a-number", "application/octet-stream", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Invalid shardId")
}

func TestChunkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeChunk(&buf, chunkItem, []byte("abc")))
	require.NoError(t, writeChunk(&buf, chunkItem, nil))
	require.NoError(t, writeChunk(&buf, chunkEnd, nil))

	kind, data, err := readChunk(&buf)
	require.NoError(t, err)
	assert.Equal(t, chunkItem, kind)
	assert.Equal(t, "abc", string(data))

	kind, data, err = readChunk(&buf)
	require.NoError(t, err)
	assert.Equal(t, chunkItem, kind)
	assert.Empty(t, data)

	kind, _, err = readChunk(&buf)
	require.NoError(t, err)
	assert.Equal(t, chunkEnd, kind)

	_, _, err = readChunk(&buf)
	assert.ErrorIs(t, err, io.EOF)

	_, _, err = readChunk(bytes.NewReader([]byte{9, 0, 0, 0, 0}))
	assert.Error(t, err)
}
