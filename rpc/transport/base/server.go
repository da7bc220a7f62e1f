package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// errStreamCancelled is returned by the send function of a stream the client abandoned
var errStreamCancelled = errors.New("stream cancelled by client")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	streamHandler     transport.ServerStreamHandleFunc
	config            common.ServerConfig
	listener          net.Listener
	listenerMu        sync.Mutex
	conns             *xsync.MapOf[net.Conn, struct{}]
	closed            atomic.Bool
	bufferPool        *sync.Pool
	bufferSize        int
	maxWorkersPerConn int
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool.
// A positive WorkersPerConn in the server config overrides maxWorkersPerConn.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	// minimum one worker per connection
	maxWorkersPerConn = max(maxWorkersPerConn, 1)
	bufferSize = max(bufferSize, headerSize)

	return &serverTransport{
		connector:         connector,
		bufferSize:        bufferSize,
		maxWorkersPerConn: maxWorkersPerConn,
		conns:             xsync.NewMapOf[net.Conn, struct{}](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) RegisterStreamHandler(handler transport.ServerStreamHandleFunc) {
	t.streamHandler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil || t.streamHandler == nil {
		return fmt.Errorf("%s transport: handlers not registered", t.connector.GetName())
	}

	t.config = config
	if config.Transport.WorkersPerConn > 0 {
		t.maxWorkersPerConn = config.Transport.WorkersPerConn
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.listenerMu.Lock()
	t.listener = listener
	t.listenerMu.Unlock()

	if t.closed.Load() {
		_ = listener.Close()
		return nil
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Transport.Endpoint, t.maxWorkersPerConn)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Errorf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.conns.Store(conn, struct{}{})
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Shutdown() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.listenerMu.Lock()
	listener := t.listener
	t.listenerMu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.conns.Delete(conn)
	defer conn.Close()

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// Create a mutex to protect writes to the connection
	var connMutex sync.Mutex

	// Cancel channels of the streams running on this connection
	streams := xsync.NewMapOf[uint64, chan struct{}]()

	write := func(kind frameKind, shardID, requestID uint64, data []byte) error {
		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set write deadline: %w", err)
			}
		}
		return writeFrame(conn, kind, shardID, requestID, data)
	}

	// Handler function that processes unary requests in worker goroutines
	handleUnary := func(shardID, requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(shardID, data)
		Logger.Debugf("Processed request for shard %d with requestID %d took %s", shardID, requestID, time.Since(start))

		// Write the response with the same requestID
		if err := write(frameUnary, shardID, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Handler function that runs a stream until it is exhausted or cancelled
	handleStream := func(shardID, requestID uint64, data []byte, cancel chan struct{}) {
		defer streams.Delete(requestID)

		start := time.Now()
		items := 0
		send := func(resp []byte) error {
			select {
			case <-cancel:
				return errStreamCancelled
			default:
			}
			items++
			return write(frameStreamItem, shardID, requestID, resp)
		}

		err := t.streamHandler(shardID, data, send)
		Logger.Debugf("Stream for shard %d with requestID %d sent %d items in %s", shardID, requestID, items, time.Since(start))

		select {
		case <-cancel:
			// the client is no longer listening
			return
		default:
		}

		var end []byte
		if err != nil {
			Logger.Warningf("Stream for shard %d with requestID %d failed: %v", shardID, requestID, err)
			end = []byte(err.Error())
		}
		if err := write(frameStreamEnd, shardID, requestID, end); err != nil {
			Logger.Errorf("Failed to write stream end: %v", err)
		}
	}

	// Function to handle incoming frames
	handleFrame := func() error {
		// Get a buffer from the pool
		buf := t.bufferPool.Get().([]byte)

		f, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}

		var work func()
		switch f.kind {
		case frameUnary:
			work = func() { handleUnary(f.shardID, f.requestID, f.data) }
		case frameStreamOpen:
			cancel := make(chan struct{})
			streams.Store(f.requestID, cancel)
			work = func() { handleStream(f.shardID, f.requestID, f.data, cancel) }
		case frameStreamCancel:
			if cancel, ok := streams.LoadAndDelete(f.requestID); ok {
				close(cancel)
			}
			t.bufferPool.Put(buf)
			return nil
		default:
			t.bufferPool.Put(buf)
			return fmt.Errorf("unexpected frame kind %d from client", f.kind)
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached)
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				t.bufferPool.Put(buf)
				<-workerSemaphore
				wg.Done()
			}()
			work()
		}()

		return nil
	}

	for {
		err := handleFrame()

		// Case EOF: Connection closed by client
		if err == io.EOF {
			Logger.Debugf("Connection closed by client")
			break
		}

		if err != nil {
			if !t.closed.Load() {
				Logger.Errorf("Error handling request: %v", err)
			}
			break
		}
	}

	// Stop all streams of this connection, nobody reads them anymore
	streams.Range(func(requestID uint64, _ chan struct{}) bool {
		if c, ok := streams.LoadAndDelete(requestID); ok {
			close(c)
		}
		return true
	})

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
