package grpc

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// NewGrpcClientTransport creates a new gRPC client transport
func NewGrpcClientTransport() transport.IRPCClientTransport {
	return &grpcClientTransport{}
}

type grpcClientTransport struct {
	conns      []*grpc.ClientConn
	connsMu    sync.RWMutex
	counter    uint32
	retryCount int
	timeout    time.Duration
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *grpcClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	_ = t.Close()

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if config.Transport.TCPKeepAliveSec > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			// gRPC enforces a minimum of 10 seconds
			Time:                time.Duration(max(config.Transport.TCPKeepAliveSec, 10)) * time.Second,
			PermitWithoutStream: true,
		}))
	}
	if config.Transport.WriteBufferSize > 0 {
		opts = append(opts, grpc.WithWriteBufferSize(config.Transport.WriteBufferSize))
	}
	if config.Transport.ReadBufferSize > 0 {
		opts = append(opts, grpc.WithReadBufferSize(config.Transport.ReadBufferSize))
	}

	connectionsPerEP := max(config.Transport.ConnectionsPerEndpoint, 1)
	conns := make([]*grpc.ClientConn, 0, len(config.Transport.Endpoints)*connectionsPerEP)
	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			conn, err := grpc.NewClient(endpoint, opts...)
			if err != nil {
				for _, c := range conns {
					_ = c.Close()
				}
				return fmt.Errorf("failed to create client for %s: %w", endpoint, err)
			}
			conns = append(conns, conn)
		}
	}

	t.connsMu.Lock()
	t.conns = conns
	t.retryCount = max(config.Transport.RetryCount, 1)
	t.timeout = time.Duration(config.TimeoutSecond) * time.Second
	t.connsMu.Unlock()

	Logger.Infof("Created %d gRPC connections to %d endpoints", len(conns), len(config.Transport.Endpoints))
	return nil
}

func (t *grpcClientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	var lastErr error
	for i := 0; i < t.retryCount; i++ {
		conn := t.nextConn()
		if conn == nil {
			return nil, fmt.Errorf("grpc transport not initialized")
		}

		resp, err := t.invoke(conn, shardId, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if status.Code(err) != codes.Unavailable {
			return nil, transportError(err)
		}

		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, t.retryCount, err)
		if i < t.retryCount-1 {
			jitter := float64(int(50)<<min(i, 6)) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
		}
	}
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", t.retryCount, transportError(lastErr))
}

func (t *grpcClientTransport) Stream(shardId uint64, req []byte) (transport.IClientStream, error) {
	conn := t.nextConn()
	if conn == nil {
		return nil, fmt.Errorf("grpc transport not initialized")
	}

	ctx, cancel := context.WithCancel(withShard(context.Background(), shardId))
	cs, err := conn.NewStream(ctx, &serviceDesc.Streams[0], streamMethod)
	if err != nil {
		cancel()
		return nil, transportError(err)
	}
	if err := cs.SendMsg(wrapperspb.Bytes(req)); err != nil {
		cancel()
		return nil, transportError(err)
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, transportError(err)
	}

	return &grpcClientStream{
		stream:  cs,
		cancel:  cancel,
		timeout: t.timeout,
	}, nil
}

func (t *grpcClientTransport) Close() error {
	t.connsMu.Lock()
	conns := t.conns
	t.conns = nil
	t.connsMu.Unlock()

	var errs []error
	for _, conn := range conns {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *grpcClientTransport) invoke(conn *grpc.ClientConn, shardId uint64, req []byte) ([]byte, error) {
	ctx := withShard(context.Background(), shardId)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	out := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, callMethod, wrapperspb.Bytes(req), out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// nextConn selects the next connection via Round Robin
func (t *grpcClientTransport) nextConn() *grpc.ClientConn {
	t.connsMu.RLock()
	defer t.connsMu.RUnlock()

	if len(t.conns) == 0 {
		return nil
	}
	idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.conns))
	return t.conns[idx]
}

// transportError turns a gRPC status into a plain error
func transportError(err error) error {
	if st, ok := status.FromError(err); ok {
		return fmt.Errorf("grpc %s: %s", st.Code(), st.Message())
	}
	return err
}

// --------------------------------------------------------------------------
// Client Stream
// --------------------------------------------------------------------------

// grpcClientStream receives the items of a server stream, it is not safe for concurrent use
type grpcClientStream struct {
	stream    grpc.ClientStream
	cancel    context.CancelFunc
	timeout   time.Duration
	err       error
	closeOnce sync.Once
}

func (s *grpcClientStream) Recv() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	var timer *time.Timer
	if s.timeout > 0 {
		timer = time.AfterFunc(s.timeout, s.cancel)
	}

	out := new(wrapperspb.BytesValue)
	err := s.stream.RecvMsg(out)
	if timer != nil && !timer.Stop() && err != nil {
		err = fmt.Errorf("stream timed out: %w", err)
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
		} else {
			s.err = transportError(err)
		}
		_ = s.Close()
		return nil, s.err
	}
	return out.GetValue(), nil
}

func (s *grpcClientStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.err == nil {
			s.err = io.EOF
		}
	})
	return nil
}
