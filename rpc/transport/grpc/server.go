package grpc

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"net"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/grpc")

// NewGrpcServerTransport creates a new gRPC server transport
func NewGrpcServerTransport() transport.IRPCServerTransport {
	return &grpcServerTransport{
		healthSrv: health.NewServer(),
	}
}

type grpcServerTransport struct {
	handler       transport.ServerHandleFunc
	streamHandler transport.ServerStreamHandleFunc
	config        common.ServerConfig
	healthSrv     *health.Server
	server        *grpc.Server
	serverMu      sync.Mutex
	closed        bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *grpcServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *grpcServerTransport) RegisterStreamHandler(handler transport.ServerStreamHandleFunc) {
	t.streamHandler = handler
}

func (t *grpcServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Transport.Endpoint, err)
	}

	t.serverMu.Lock()
	if t.closed {
		t.serverMu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.server = grpc.NewServer(t.serverOptions()...)
	server := t.server
	t.serverMu.Unlock()

	server.RegisterService(&serviceDesc, t)
	grpc_health_v1.RegisterHealthServer(server, t.healthSrv)
	t.healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	t.healthSrv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	Logger.Infof("Starting gRPC server on %s", config.Transport.Endpoint)

	// Serve returns nil once the server was stopped
	return server.Serve(listener)
}

func (t *grpcServerTransport) Shutdown() error {
	t.serverMu.Lock()
	defer t.serverMu.Unlock()

	t.closed = true
	t.healthSrv.Shutdown()
	if t.server == nil {
		return nil
	}

	stopped := make(chan struct{})
	go func() {
		t.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		// streams still running after the grace period are cut off
		t.server.Stop()
	}
	return nil
}

// --------------------------------------------------------------------------
// Service Methods
// --------------------------------------------------------------------------

func (t *grpcServerTransport) Call(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	shardId, err := shardFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(t.handler(shardId, req.GetValue())), nil
}

func (t *grpcServerTransport) Stream(req *wrapperspb.BytesValue, stream grpc.ServerStream) error {
	ctx := stream.Context()
	shardId, err := shardFromContext(ctx)
	if err != nil {
		return err
	}

	send := func(resp []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return stream.SendMsg(wrapperspb.Bytes(resp))
	}

	if err := t.streamHandler(shardId, req.GetValue(), send); err != nil {
		if ctx.Err() != nil {
			return status.FromContextError(ctx.Err()).Err()
		}
		Logger.Warningf("Stream for shard %d failed: %v", shardId, err)
		return status.Error(codes.Internal, err.Error())
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *grpcServerTransport) serverOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	if t.config.Transport.TCPKeepAliveSec > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			Time: time.Duration(t.config.Transport.TCPKeepAliveSec) * time.Second,
		}))
	}
	if t.config.Transport.WorkersPerConn > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(t.config.Transport.WorkersPerConn)))
	}
	if t.config.Transport.WriteBufferSize > 0 {
		opts = append(opts, grpc.WriteBufferSize(t.config.Transport.WriteBufferSize))
	}
	if t.config.Transport.ReadBufferSize > 0 {
		opts = append(opts, grpc.ReadBufferSize(t.config.Transport.ReadBufferSize))
	}
	if t.config.LogLevel == "debug" {
		opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor))
	}
	return opts
}

// loggingInterceptor logs every unary call with its status and duration
func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	Logger.Debugf("%s => %s took %s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}
