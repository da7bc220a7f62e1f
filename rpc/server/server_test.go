package server

import (
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/serializer"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeTransport captures the handlers so requests can be fed in directly
type fakeTransport struct {
	handler       transport.ServerHandleFunc
	streamHandler transport.ServerStreamHandleFunc
	shutdown      bool
}

func (f *fakeTransport) RegisterHandler(h transport.ServerHandleFunc)             { f.handler = h }
func (f *fakeTransport) RegisterStreamHandler(h transport.ServerStreamHandleFunc) { f.streamHandler = h }
func (f *fakeTransport) Listen(common.ServerConfig) error                         { return nil }
func (f *fakeTransport) Shutdown() error {
	f.shutdown = true
	return nil
}

type testServer struct {
	*RPCServer
	ft  *fakeTransport
	ser serializer.IRPCSerializer
}

func newTestServer(t *testing.T, shards ...uint64) *testServer {
	t.Helper()
	config := common.ServerConfig{MaxRange: 3, BTreeDegree: 4, LogLevel: "error"}
	for _, id := range shards {
		config.Shards = append(config.Shards, common.ServerShard{ShardID: id, Type: common.ShardTypeLocalIStore})
	}

	ft := &fakeTransport{}
	ser := serializer.NewJSONSerializer()
	s := NewRPCServer(config, ft, ser)
	require.NoError(t, s.init())
	t.Cleanup(func() { _ = s.Shutdown() })
	return &testServer{RPCServer: s, ft: ft, ser: ser}
}

func (ts *testServer) call(t *testing.T, shardId uint64, req *common.Message) *common.Message {
	t.Helper()
	b, err := ts.ser.Serialize(*req)
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, ts.ser.Deserialize(ts.ft.handler(shardId, b), &resp))
	return &resp
}

func (ts *testServer) stream(t *testing.T, shardId uint64, req *common.Message) []*common.Message {
	t.Helper()
	b, err := ts.ser.Serialize(*req)
	require.NoError(t, err)

	var msgs []*common.Message
	err = ts.ft.streamHandler(shardId, b, func(resp []byte) error {
		var msg common.Message
		require.NoError(t, ts.ser.Deserialize(resp, &msg))
		msgs = append(msgs, &msg)
		return nil
	})
	require.NoError(t, err)
	return msgs
}

func encode(t *testing.T, v *structpb.Value) []byte {
	t.Helper()
	b, err := value.Encode(v)
	require.NoError(t, err)
	return b
}

func TestUnaryRequests(t *testing.T) {
	ts := newTestServer(t, 1, 2)

	resp := ts.call(t, 1, common.NewSetRequest([]byte("a"), encode(t, structpb.NewNumberValue(42))))
	require.NoError(t, resp.GetError())
	assert.False(t, resp.GetTime().IsZero())

	resp = ts.call(t, 1, common.NewGetRequest([]byte("a")))
	require.NoError(t, resp.GetError())
	got, err := value.Decode(resp.Value)
	require.NoError(t, err)
	assert.True(t, proto.Equal(structpb.NewNumberValue(42), got))

	// shards are isolated
	resp = ts.call(t, 2, common.NewGetRequest([]byte("a")))
	assert.True(t, store.IsNotFound(resp.GetError()))
	assert.Equal(t, "no value found", resp.Err)

	resp = ts.call(t, 1, common.NewPushRequest([]byte("q"), encode(t, structpb.NewStringValue("x")), false))
	require.NoError(t, resp.GetError())
	assert.Equal(t, uint64(1), resp.Count)

	resp = ts.call(t, 1, common.NewDSetRequest([]byte("q"), []byte("f"), encode(t, structpb.NewBoolValue(true))))
	assert.True(t, store.IsInvalidArgument(resp.GetError()))
	assert.Equal(t, "the key is not a map", resp.Err)

	resp = ts.call(t, 1, common.NewInfoRequest())
	require.NoError(t, resp.GetError())
	assert.Contains(t, string(resp.Meta), `"keys":2`)
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t, 1)

	t.Run("UnknownShard", func(t *testing.T) {
		resp := ts.call(t, 99, common.NewGetRequest([]byte("a")))
		assert.Equal(t, common.MsgTError, resp.MsgType)
		assert.True(t, store.IsNotFound(resp.GetError()))
	})

	t.Run("GarbageRequest", func(t *testing.T) {
		var resp common.Message
		require.NoError(t, ts.ser.Deserialize(ts.ft.handler(1, []byte("{not json")), &resp))
		assert.Equal(t, common.MsgTError, resp.MsgType)
		assert.True(t, store.IsInvalidArgument(resp.GetError()))
	})

	t.Run("GarbageValue", func(t *testing.T) {
		resp := ts.call(t, 1, common.NewSetRequest([]byte("a"), []byte{0xff, 0xff, 0xff}))
		assert.True(t, store.IsInvalidArgument(resp.GetError()))
	})

	t.Run("Unsupported", func(t *testing.T) {
		resp := ts.call(t, 1, common.NewCustomRequest([]byte("x")))
		assert.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(resp.GetError()))

		resp = ts.call(t, 1, common.NewRangeRequest(db.Included([]byte("a")), db.Included([]byte("b"))))
		assert.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(resp.GetError()))
	})
}

func TestRangeStream(t *testing.T) {
	ts := newTestServer(t, 1)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		resp := ts.call(t, 1, common.NewSAddRequest([]byte(k), []byte("m")))
		require.NoError(t, resp.GetError())
	}

	t.Run("Truncated", func(t *testing.T) {
		msgs := ts.stream(t, 1, common.NewRangeRequest(db.Included([]byte("a")), db.Included([]byte("z"))))
		require.Len(t, msgs, 4)
		for i, k := range []string{"a", "b", "c"} {
			assert.Equal(t, common.MsgTRange, msgs[i].MsgType)
			assert.Equal(t, k, string(msgs[i].Key))
		}
		assert.Equal(t, common.MsgTStreamEnd, msgs[3].MsgType)
	})

	t.Run("InvalidBounds", func(t *testing.T) {
		msgs := ts.stream(t, 1, common.NewRangeRequest(db.Included([]byte("z")), db.Included([]byte("a"))))
		require.Len(t, msgs, 1)
		assert.True(t, store.IsInvalidArgument(msgs[0].GetError()))
		assert.Equal(t, "lower > upper", msgs[0].Err)

		msgs = ts.stream(t, 1, common.NewRangeRequest(db.Unbounded(), db.Included([]byte("a"))))
		require.Len(t, msgs, 1)
		assert.Equal(t, "invalid bound", msgs[0].Err)
	})

	t.Run("UnknownShard", func(t *testing.T) {
		msgs := ts.stream(t, 7, common.NewRangeRequest(db.Included([]byte("a")), db.Included([]byte("b"))))
		require.Len(t, msgs, 1)
		assert.True(t, store.IsNotFound(msgs[0].GetError()))
	})

	t.Run("NotAStream", func(t *testing.T) {
		msgs := ts.stream(t, 1, common.NewGetRequest([]byte("a")))
		require.Len(t, msgs, 1)
		assert.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(msgs[0].GetError()))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	ts.call(t, 1, common.NewSetRequest([]byte("a"), encode(t, structpb.NewNumberValue(1))))
	ts.call(t, 9, common.NewGetRequest([]byte("a")))

	srv := httptest.NewServer(ts.metricsRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `memdb_keys{store="1"} 1`)
	assert.Contains(t, text, `memdb_keys{store="2"} 0`)
	assert.Contains(t, text, `memdb_rpc_requests_total{kind="unary",type="set"} 1`)
	assert.Contains(t, text, `memdb_rpc_errors_total{kind="shard"} 1`)
	assert.Less(t, strings.Index(text, `store="1"`), strings.Index(text, `store="2"`))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvalidShardConfig(t *testing.T) {
	t.Run("UnknownType", func(t *testing.T) {
		s := NewRPCServer(common.ServerConfig{
			Shards: []common.ServerShard{{ShardID: 1, Type: "remote store"}},
		}, &fakeTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
		_ = s.Shutdown()
	})

	t.Run("Duplicate", func(t *testing.T) {
		s := NewRPCServer(common.ServerConfig{
			Shards: []common.ServerShard{
				{ShardID: 1, Type: common.ShardTypeLocalIStore},
				{ShardID: 1, Type: common.ShardTypeLocalIStore},
			},
		}, &fakeTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
		_ = s.Shutdown()
	})
}

func TestServeAndShutdown(t *testing.T) {
	ft := &fakeTransport{}
	s := NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeLocalIStore}},
	}, ft, serializer.NewJSONSerializer())

	// the fake transport returns at once, Serve then shuts everything down
	require.NoError(t, s.Serve())
	assert.True(t, ft.shutdown)

	shard, ok := s.shards.Load(1)
	require.True(t, ok)
	_, err := shard.Store.Get([]byte("a"))
	assert.True(t, store.IsInternal(err), "stores must be closed after shutdown")
}
