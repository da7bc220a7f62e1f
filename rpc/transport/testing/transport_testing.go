package testing

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Setup bundles a server and a client transport of the same kind with matching configs
type Setup struct {
	Server       transport.IRPCServerTransport
	Client       transport.IRPCClientTransport
	ServerConfig common.ServerConfig
	ClientConfig common.ClientConfig
}

// TransportFactory creates a fresh, not yet started Setup
type TransportFactory func(t *testing.T) Setup

// FreeTCPAddr returns a local address that was free a moment ago
func FreeTCPAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// StartServer registers the given handlers, starts the server and connects the client.
// Both are shut down when the test ends.
func StartServer(t *testing.T, s Setup, handler transport.ServerHandleFunc, streamHandler transport.ServerStreamHandleFunc) {
	t.Helper()

	s.Server.RegisterHandler(handler)
	s.Server.RegisterStreamHandler(streamHandler)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- s.Server.Listen(s.ServerConfig)
	}()

	// the server needs a moment until it accepts connections
	require.Eventually(t, func() bool {
		if err := s.Client.Connect(s.ClientConfig); err != nil {
			return false
		}
		_, err := s.Client.Send(0, []byte("ping"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "server did not come up")

	t.Cleanup(func() {
		_ = s.Client.Close()
		require.NoError(t, s.Server.Shutdown())
		select {
		case err := <-listenErr:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Listen did not return after Shutdown")
		}
	})
}

// RunTransportTests runs the conformance suite for a pair of transports.
func RunTransportTests(t *testing.T, name string, factory TransportFactory) {
	t.Run(name, func(t *testing.T) {
		s := factory(t)
		cancelled := make(chan error, 1)
		StartServer(t, s, echoHandler, countingStreamHandler(cancelled))

		t.Run("Unary", func(t *testing.T) {
			resp, err := s.Client.Send(7, []byte("hello"))
			require.NoError(t, err)
			assert.Equal(t, "7:hello", string(resp))
		})

		t.Run("UnaryEmptyPayload", func(t *testing.T) {
			resp, err := s.Client.Send(1, []byte{})
			require.NoError(t, err)
			assert.Equal(t, "1:", string(resp))
		})

		t.Run("ConcurrentUnary", func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					req := fmt.Sprintf("req-%d", i)
					resp, err := s.Client.Send(uint64(i), []byte(req))
					if assert.NoError(t, err) {
						assert.Equal(t, fmt.Sprintf("%d:%s", i, req), string(resp))
					}
				}(i)
			}
			wg.Wait()
		})

		t.Run("Stream", func(t *testing.T) {
			stream, err := s.Client.Stream(3, []byte("5"))
			require.NoError(t, err)
			defer stream.Close()

			for i := 0; i < 5; i++ {
				item, err := stream.Recv()
				require.NoError(t, err)
				assert.Equal(t, fmt.Sprintf("3-item-%d", i), string(item))
			}
			_, err = stream.Recv()
			assert.ErrorIs(t, err, io.EOF)
			_, err = stream.Recv()
			assert.ErrorIs(t, err, io.EOF, "end of stream must be sticky")
		})

		t.Run("EmptyStream", func(t *testing.T) {
			stream, err := s.Client.Stream(3, []byte("0"))
			require.NoError(t, err)
			defer stream.Close()

			_, err = stream.Recv()
			assert.ErrorIs(t, err, io.EOF)
		})

		t.Run("StreamFailure", func(t *testing.T) {
			stream, err := s.Client.Stream(1, []byte("fail"))
			require.NoError(t, err)
			defer stream.Close()

			item, err := stream.Recv()
			require.NoError(t, err)
			assert.Equal(t, "first", string(item))

			_, err = stream.Recv()
			require.Error(t, err)
			assert.NotErrorIs(t, err, io.EOF)
		})

		t.Run("ConcurrentStreams", func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					stream, err := s.Client.Stream(uint64(i), []byte(strconv.Itoa(i)))
					if !assert.NoError(t, err) {
						return
					}
					defer stream.Close()

					count := 0
					for {
						_, err := stream.Recv()
						if errors.Is(err, io.EOF) {
							break
						}
						if !assert.NoError(t, err) {
							return
						}
						count++
					}
					assert.Equal(t, i, count)
				}(i)
			}
			wg.Wait()
		})

		t.Run("StreamCancel", func(t *testing.T) {
			stream, err := s.Client.Stream(1, []byte("endless"))
			require.NoError(t, err)

			for i := 0; i < 2; i++ {
				_, err := stream.Recv()
				require.NoError(t, err)
			}
			_ = stream.Close()

			select {
			case err := <-cancelled:
				assert.Error(t, err, "the server must notice the cancelled stream")
			case <-time.After(10 * time.Second):
				t.Fatal("server kept streaming after the client closed the stream")
			}

			// the transport is still usable
			resp, err := s.Client.Send(2, []byte("after"))
			require.NoError(t, err)
			assert.Equal(t, "2:after", string(resp))
		})
	})
}

// echoHandler answers with "<shardId>:<request>"
func echoHandler(shardId uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
}

// countingStreamHandler streams "<shardId>-item-<i>" for a numeric request,
// fails after one item for "fail" and streams until cancelled for "endless".
func countingStreamHandler(cancelled chan<- error) transport.ServerStreamHandleFunc {
	return func(shardId uint64, req []byte, send func([]byte) error) error {
		switch cmd := string(req); cmd {
		case "fail":
			if err := send([]byte("first")); err != nil {
				return err
			}
			return errors.New("stream broke")
		case "endless":
			for i := 0; i < 10_000_000; i++ {
				if err := send([]byte("item-" + strconv.Itoa(i))); err != nil {
					cancelled <- err
					return err
				}
			}
			cancelled <- nil
			return nil
		default:
			n, err := strconv.Atoi(cmd)
			if err != nil {
				return fmt.Errorf("bad request %q", cmd)
			}
			for i := 0; i < n; i++ {
				if err := send([]byte(fmt.Sprintf("%d-item-%d", shardId, i))); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
