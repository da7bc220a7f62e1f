package grpc

import (
	"context"
	"github.com/ValentinKolb/memDB/rpc/common"
	transporttesting "github.com/ValentinKolb/memDB/rpc/transport/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"testing"
	"time"
)

func newSetup(t *testing.T) transporttesting.Setup {
	addr := transporttesting.FreeTCPAddr(t)
	return transporttesting.Setup{
		Server: NewGrpcServerTransport(),
		Client: NewGrpcClientTransport(),
		ServerConfig: common.ServerConfig{
			LogLevel: "debug",
			Transport: common.ServerTransportConfig{
				Endpoint:       addr,
				WorkersPerConn: 64,
			},
		},
		ClientConfig: common.ClientConfig{
			TimeoutSecond: 5,
			Transport: common.ClientTransportConfig{
				Endpoints:              []string{addr},
				RetryCount:             2,
				ConnectionsPerEndpoint: 2,
				TCPConf:                common.TCPConf{TCPKeepAliveSec: 30},
			},
		},
	}
}

func TestGrpcTransport(t *testing.T) {
	transporttesting.RunTransportTests(t, "grpc", newSetup)
}

func TestHealthAndMetadata(t *testing.T) {
	setup := newSetup(t)
	transporttesting.StartServer(t, setup,
		func(shardId uint64, req []byte) []byte { return req },
		func(shardId uint64, req []byte, send func([]byte) error) error { return nil },
	)

	conn, err := grpc.NewClient(setup.ServerConfig.Transport.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("Health", func(t *testing.T) {
		resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	t.Run("MissingShard", func(t *testing.T) {
		err := conn.Invoke(ctx, callMethod, wrapperspb.Bytes([]byte("x")), new(wrapperspb.BytesValue))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("ExplicitShard", func(t *testing.T) {
		out := new(wrapperspb.BytesValue)
		err := conn.Invoke(withShard(ctx, 3), callMethod, wrapperspb.Bytes([]byte("x")), out)
		require.NoError(t, err)
		assert.Equal(t, "x", string(out.GetValue()))
	})
}

func TestShardFromContext(t *testing.T) {
	incoming := func(values ...string) context.Context {
		md := metadata.MD{}
		for _, v := range values {
			md.Append(shardMetadataKey, v)
		}
		return metadata.NewIncomingContext(context.Background(), md)
	}

	shardId, err := shardFromContext(incoming("42"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), shardId)

	for name, ctx := range map[string]context.Context{
		"no metadata": context.Background(),
		"no shard":    incoming(),
		"two shards":  incoming("1", "2"),
		"not a num":   incoming("abc"),
	} {
		_, err := shardFromContext(ctx)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), name)
	}
}
