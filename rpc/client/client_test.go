package client

import (
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	storetesting "github.com/ValentinKolb/memDB/lib/store/testing"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/serializer"
	"github.com/ValentinKolb/memDB/rpc/server"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/ValentinKolb/memDB/rpc/transport/grpc"
	"github.com/ValentinKolb/memDB/rpc/transport/http"
	"github.com/ValentinKolb/memDB/rpc/transport/tcp"
	transporttesting "github.com/ValentinKolb/memDB/rpc/transport/testing"
	"github.com/ValentinKolb/memDB/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// shardsPerServer is the number of empty shards a test server offers, every store
// handed out by a factory uses a shard of its own
const shardsPerServer = 64

type transportCase struct {
	name     string
	server   func() transport.IRPCServerTransport
	client   func() transport.IRPCClientTransport
	endpoint func(t *testing.T) string
}

var transportCases = []transportCase{
	{
		name:     "grpc",
		server:   grpc.NewGrpcServerTransport,
		client:   grpc.NewGrpcClientTransport,
		endpoint: transporttesting.FreeTCPAddr,
	},
	{
		name:     "http",
		server:   http.NewHttpServerTransport,
		client:   http.NewHttpClientTransport,
		endpoint: transporttesting.FreeTCPAddr,
	},
	{
		name:     "tcp",
		server:   tcp.NewTCPDefaultServerTransport,
		client:   tcp.NewTCPClientTransport,
		endpoint: transporttesting.FreeTCPAddr,
	},
	{
		name:   "unix",
		server: unix.NewUnixDefaultServerTransport,
		client: unix.NewUnixClientTransport,
		endpoint: func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "memdb.sock")
		},
	},
}

var serializers = map[string]func() serializer.IRPCSerializer{
	"json":   serializer.NewJSONSerializer,
	"gob":    serializer.NewGOBSerializer,
	"binary": serializer.NewBinarySerializer,
	"proto":  serializer.NewProtoSerializer,
}

// testCluster is a running server plus the settings needed to connect to it
type testCluster struct {
	tc         transportCase
	ser        func() serializer.IRPCSerializer
	config     common.ClientConfig
	nextShard  atomic.Uint64
	shardCount uint64
}

func startCluster(t *testing.T, tc transportCase, ser func() serializer.IRPCSerializer) *testCluster {
	t.Helper()
	endpoint := tc.endpoint(t)

	serverConfig := common.ServerConfig{
		MaxRange:      10,
		BTreeDegree:   8,
		TimeoutSecond: 5,
		LogLevel:      "error",
		Transport:     common.ServerTransportConfig{Endpoint: endpoint},
	}
	for id := uint64(1); id <= shardsPerServer; id++ {
		serverConfig.Shards = append(serverConfig.Shards, common.ServerShard{ShardID: id, Type: common.ShardTypeLocalIStore})
	}

	s := server.NewRPCServer(serverConfig, tc.server(), ser())
	served := make(chan error, 1)
	go func() { served <- s.Serve() }()
	t.Cleanup(func() {
		require.NoError(t, s.Shutdown())
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	c := &testCluster{
		tc:  tc,
		ser: ser,
		config: common.ClientConfig{
			TimeoutSecond: 5,
			Transport: common.ClientTransportConfig{
				Endpoints:  []string{endpoint},
				RetryCount: 3,
			},
		},
		shardCount: shardsPerServer,
	}

	require.Eventually(t, func() bool {
		st, err := NewRPCStore(1, c.config, tc.client(), ser())
		if err != nil {
			return false
		}
		defer st.Close()
		_, err = st.GetDBInfo()
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "server did not come up")

	return c
}

// store returns a client for an unused shard
func (c *testCluster) store(t *testing.T) store.IStore {
	shard := c.nextShard.Add(1)
	require.LessOrEqual(t, shard, c.shardCount, "test server ran out of shards")

	st, err := NewRPCStore(shard, c.config, c.tc.client(), c.ser())
	require.NoError(t, err)
	return st
}

func TestRPCStoreConformance(t *testing.T) {
	for _, tc := range transportCases {
		for serName, ser := range serializers {
			// the framed and grpc transports are exercised with every serializer,
			// the others with the binary one only
			if (tc.name == "http" || tc.name == "unix") && serName != "binary" {
				continue
			}
			name := tc.name + "/" + serName
			t.Run(name, func(t *testing.T) {
				cluster := startCluster(t, tc, ser)
				storetesting.RunIStoreTests(t, name, func() store.IStore {
					return cluster.store(t)
				})
			})
		}
	}
}

func TestRPCStoreSpecifics(t *testing.T) {
	cluster := startCluster(t, transportCases[0], serializer.NewBinarySerializer)

	t.Run("UnknownShard", func(t *testing.T) {
		st, err := NewRPCStore(shardsPerServer+1, cluster.config, grpc.NewGrpcClientTransport(), serializer.NewBinarySerializer())
		require.NoError(t, err)
		defer st.Close()

		_, err = st.Get([]byte("a"))
		assert.True(t, store.IsNotFound(err))

		keys, err := st.Range(db.Included([]byte("a")), db.Included([]byte("b")))
		require.NoError(t, err)
		defer keys.Close()
		_, err = keys.Recv()
		assert.True(t, store.IsNotFound(err))
	})

	t.Run("TimestampsTravel", func(t *testing.T) {
		st := cluster.store(t)
		defer st.Close()

		before := time.Now()
		ts, err := st.Set([]byte("a"), structpb.NewStringValue("x"))
		require.NoError(t, err)
		assert.WithinDuration(t, before, ts, time.Minute)
	})

	t.Run("StreamClosedEarly", func(t *testing.T) {
		st := cluster.store(t)
		defer st.Close()

		for _, k := range []string{"a", "b", "c", "d"} {
			_, err := st.Set([]byte(k), structpb.NewBoolValue(true))
			require.NoError(t, err)
		}

		keys, err := st.Range(db.Included([]byte("a")), db.Included([]byte("z")))
		require.NoError(t, err)
		key, err := keys.Recv()
		require.NoError(t, err)
		assert.Equal(t, "a", string(key))
		keys.Close()

		_, err = keys.Recv()
		assert.ErrorIs(t, err, io.EOF)

		// the store is still usable
		n, err := st.GetDBInfo()
		require.NoError(t, err)
		assert.Equal(t, 4, n.Keys)
	})

	t.Run("ClosedTransport", func(t *testing.T) {
		st := cluster.store(t)
		require.NoError(t, st.Close())

		_, err := st.Get([]byte("a"))
		assert.True(t, store.IsInternal(err))
	})
}

func TestConnectFailure(t *testing.T) {
	_, err := NewRPCStore(1, common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{transporttesting.FreeTCPAddr(t)}},
	}, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
	assert.Error(t, err)

	_, err = NewRPCStore(1, common.ClientConfig{}, grpc.NewGrpcClientTransport(), serializer.NewBinarySerializer())
	assert.Error(t, err)
}
