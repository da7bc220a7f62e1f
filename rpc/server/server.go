package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/db/engines/btree"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/store/lstore"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/serializer"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net/http"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("server")

// serverShard is a struct that represents a shard in the RPC server
// It contains the shard ID, the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// prometheusWriter is implemented by stores that expose metrics
type prometheusWriter interface {
	WritePrometheus(w io.Writer)
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		grpc.NewGrpcServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		rpcMetrics: metrics.NewSet(),
	}
}

// RPCServer serves the shards of one process over a single transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	rpcMetrics    *metrics.Set
	metricsServer *http.Server

	shutdownOnce sync.Once
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// decodeRequest looks up the shard and deserializes the request.
// If that fails the returned message is the error response.
func (s *RPCServer) decodeRequest(shardId uint64, req []byte) (serverShard, *common.Message, *common.Message) {
	shard, ok := s.shards.Load(shardId)
	if !ok {
		s.countError("shard")
		return serverShard{}, nil, common.NewErrorResponse(store.RetCNotFound, fmt.Sprintf("shard %d not found", shardId))
	}

	var msg common.Message
	if err := s.serializer.Deserialize(req, &msg); err != nil {
		s.countError("decode")
		return serverShard{}, nil, common.NewErrorResponse(store.RetCInvalidArgument, fmt.Sprintf("failed to deserialize request: %s", err))
	}
	return shard, &msg, nil
}

// encodeResponse serializes a response, falling back to an error message
func (s *RPCServer) encodeResponse(resp *common.Message) []byte {
	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		s.countError("encode")
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			store.RetCInternalError,
			fmt.Sprintf("failed to serialize response: %s", err),
		))
	}
	return val
}

func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	shard, msg, errResp := s.decodeRequest(shardId, req)
	if errResp != nil {
		return s.encodeResponse(errResp)
	}
	s.rpcMetrics.GetOrCreateCounter(fmt.Sprintf(`memdb_rpc_requests_total{kind="unary",type=%q}`, msg.MsgType)).Inc()
	return s.encodeResponse(shard.Adapter.Handle(msg, shard.Store))
}

func (s *RPCServer) handleStream(shardId uint64, req []byte, send func([]byte) error) error {
	sendMsg := func(m *common.Message) error {
		return send(s.encodeResponse(m))
	}

	shard, msg, errResp := s.decodeRequest(shardId, req)
	if errResp != nil {
		return sendMsg(errResp)
	}
	s.rpcMetrics.GetOrCreateCounter(fmt.Sprintf(`memdb_rpc_requests_total{kind="stream",type=%q}`, msg.MsgType)).Inc()

	streamID := uuid.NewString()
	Logger.Debugf("stream %s opened on shard %d (%s)", streamID, shardId, msg.MsgType)
	err := shard.Adapter.HandleStream(msg, shard.Store, sendMsg)
	Logger.Debugf("stream %s closed (err=%v)", streamID, err)
	return err
}

func (s *RPCServer) countError(kind string) {
	s.rpcMetrics.GetOrCreateCounter(fmt.Sprintf(`memdb_rpc_errors_total{kind=%q}`, kind)).Inc()
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	// Function to create a new database instance
	degree := s.config.BTreeDegree
	dbFactory := func() db.KVDB { return btree.NewBTreeDB(&btree.Config{Degree: degree}) }

	for _, shardConfig := range s.config.Shards {
		if shardConfig.Type != common.ShardTypeLocalIStore {
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return fmt.Errorf("shard %d configured twice", shardConfig.ShardID)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store: lstore.NewLocalStore(dbFactory, &lstore.Config{
				Name:     strconv.FormatUint(shardConfig.ShardID, 10),
				MaxRange: s.config.MaxRange,
			}),
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created local store for shard %d", shardConfig.ShardID)
	}

	s.transport.RegisterHandler(s.handle)
	s.transport.RegisterStreamHandler(s.handleStream)

	Logger.Infof("memDB setup completed successfully")
	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until the transport stops.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		if err := s.startMetricsServer(); err != nil {
			_ = s.Shutdown()
			return err
		}
	}

	err := s.transport.Listen(s.config)
	_ = s.Shutdown()
	return err
}

// Shutdown stops the transport and the metrics endpoint and closes all stores
func (s *RPCServer) Shutdown() error {
	var errs []error
	s.shutdownOnce.Do(func() {
		errs = append(errs, s.transport.Shutdown())

		if s.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			errs = append(errs, s.metricsServer.Shutdown(ctx))
			cancel()
		}

		s.shards.Range(func(shardId uint64, shard serverShard) bool {
			if err := shard.Store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("shard %d: %w", shardId, err))
			}
			return true
		})
		Logger.Infof("RPC server stopped")
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Metrics endpoint
// --------------------------------------------------------------------------

// metricsRouter serves the Prometheus metrics of all shards and a health check
func (s *RPCServer) metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.WritePrometheus(w)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}

// WritePrometheus writes the metrics of the server, its shards and the process to w
func (s *RPCServer) WritePrometheus(w io.Writer) {
	// stable output order
	var ids []uint64
	s.shards.Range(func(shardId uint64, _ serverShard) bool {
		ids = append(ids, shardId)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		shard, ok := s.shards.Load(id)
		if !ok {
			continue
		}
		if pw, ok := shard.Store.(prometheusWriter); ok {
			pw.WritePrometheus(w)
		}
	}
	s.rpcMetrics.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

func (s *RPCServer) startMetricsServer() error {
	s.metricsServer = &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           s.metricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", s.config.MetricsEndpoint)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// fail fast if the address is taken
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start metrics endpoint: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}
