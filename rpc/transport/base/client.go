package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport")

// streamBufferSize is the number of stream items buffered per stream on the client
const streamBufferSize = 16

var errRequestTimeout = errors.New("request timed out")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains one frame received for a request
type responseResult struct {
	kind frameKind
	data []byte
}

// pendingRequest is the receiving end of a unary request or a stream
type pendingRequest struct {
	ch        chan responseResult
	closed    chan struct{} // closed by the caller when it stops listening
	closeOnce sync.Once
	failed    chan struct{} // closed by the reader when the connection broke
	failOnce  sync.Once
	err       error
}

func newPendingRequest(capacity int) *pendingRequest {
	return &pendingRequest{
		ch:     make(chan responseResult, capacity),
		closed: make(chan struct{}),
		failed: make(chan struct{}),
	}
}

// deliver blocks until the caller took the result or stopped listening
func (p *pendingRequest) deliver(r responseResult) {
	select {
	case p.ch <- r:
	case <-p.closed:
	}
}

func (p *pendingRequest) fail(err error) {
	p.failOnce.Do(func() {
		p.err = err
		close(p.failed)
	})
}

func (p *pendingRequest) close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// wait returns the next result, results delivered before a failure are returned first
func (p *pendingRequest) wait(timeout time.Duration) (responseResult, error) {
	select {
	case r := <-p.ch:
		return r, nil
	default:
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-p.ch:
		return r, nil
	case <-p.failed:
		select {
		case r := <-p.ch:
			return r, nil
		default:
		}
		return responseResult{}, p.err
	case <-timeoutCh:
		return responseResult{}, errRequestTimeout
	}
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	stopCh       chan struct{} // Close signal for the reader goroutine
	requestChans *xsync.MapOf[uint64, *pendingRequest]
	connMu       sync.Mutex // Protects the connection itself
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:     connector,
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := max(config.Transport.ConnectionsPerEndpoint, 1)

	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint:     endpoint,
				stopCh:       make(chan struct{}),
				requestChans: xsync.NewMapOf[uint64, *pendingRequest](),
				parent:       t,
			}

			// Establish the initial connection using reconnect
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, clientConn)
			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			// Start the response reader
			go clientConn.readResponses()
		}
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	// Generate a unique request ID
	requestID := atomic.AddUint64(&t.nextRequestID, 1)
	timeout := t.timeout()

	// send returns retry = true only if the request never reached the server
	send := func(connection *clientConnection) (data []byte, retry bool, err error) {
		pending := newPendingRequest(1)
		connection.requestChans.Store(requestID, pending)
		defer func() {
			connection.requestChans.Delete(requestID)
			pending.close()
		}()

		if err := connection.write(frameUnary, shardId, requestID, req, timeout); err != nil {
			return nil, true, err
		}

		result, err := pending.wait(timeout)
		if err != nil {
			return nil, false, err
		}
		if result.kind != frameUnary {
			return nil, false, fmt.Errorf("unexpected frame kind %d for unary request", result.kind)
		}
		return result.data, false, nil
	}

	var lastErr error
	maxRetries := t.maxRetries()
	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, retry, err := send(conn)
		if err == nil {
			return data, nil
		}
		if !retry {
			return nil, err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			backoff(i)
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Stream(shardId uint64, req []byte) (transport.IClientStream, error) {
	requestID := atomic.AddUint64(&t.nextRequestID, 1)
	timeout := t.timeout()

	var lastErr error
	maxRetries := t.maxRetries()
	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		pending := newPendingRequest(streamBufferSize)
		conn.requestChans.Store(requestID, pending)

		err := conn.write(frameStreamOpen, shardId, requestID, req, timeout)
		if err == nil {
			return &clientStream{
				conn:      conn,
				shardID:   shardId,
				requestID: requestID,
				pending:   pending,
				timeout:   timeout,
			}, nil
		}

		conn.requestChans.Delete(requestID)
		pending.close()
		lastErr = err
		Logger.Debugf("Stream attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			backoff(i)
		}
	}

	return nil, fmt.Errorf("failed to open stream after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Client Stream
// --------------------------------------------------------------------------

// clientStream receives the items of one server stream, it is not safe for concurrent use
type clientStream struct {
	conn      *clientConnection
	shardID   uint64
	requestID uint64
	pending   *pendingRequest
	timeout   time.Duration
	err       error
	closeOnce sync.Once
}

func (s *clientStream) Recv() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	result, err := s.pending.wait(s.timeout)
	if err != nil {
		s.err = err
		return nil, err
	}

	switch result.kind {
	case frameStreamItem:
		return result.data, nil
	case frameStreamEnd:
		s.conn.requestChans.Delete(s.requestID)
		if len(result.data) > 0 {
			s.err = fmt.Errorf("stream failed on server: %s", result.data)
		} else {
			s.err = io.EOF
		}
	default:
		s.err = fmt.Errorf("unexpected frame kind %d in stream", result.kind)
	}
	return nil, s.err
}

func (s *clientStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// still registered means the server may still be sending
		if _, running := s.conn.requestChans.LoadAndDelete(s.requestID); running {
			err = s.conn.write(frameStreamCancel, s.shardID, s.requestID, nil, s.timeout)
		}
		s.pending.close()
		if s.err == nil {
			s.err = io.EOF
		}
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// maxRetries returns the number of attempts, we always try at least once
func (t *clientTransport) maxRetries() int {
	return max(t.config.Transport.RetryCount, 1)
}

// backoff sleeps with exponential backoff and a small random jitter (+-10%)
func backoff(attempt int) {
	backoffMs := 50 << min(attempt, 6)
	jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
	time.Sleep(time.Duration(jitter) * time.Millisecond)
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	var index uint64
	if len(t.connections) > 1 {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, conn := range connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		conn.connMu.Lock()
		if conn.conn != nil {
			_ = conn.conn.Close()
		}
		conn.connMu.Unlock()

		conn.failPending(fmt.Errorf("transport closed"))
	}
}

// write sends a single frame over the connection
func (c *clientConnection) write(kind frameKind, shardID, requestID uint64, data []byte, timeout time.Duration) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("connection to %s is closed", c.endpoint)
	}

	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return writeFrame(c.conn, kind, shardID, requestID, data)
}

// failPending fails every request waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.requestChans.Range(func(requestID uint64, _ *pendingRequest) bool {
		if pending, ok := c.requestChans.LoadAndDelete(requestID); ok {
			pending.fail(err)
		}
		return true
	})
}

func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		if c.stopped() {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		var (
			f   frame
			err error
		)
		if conn == nil {
			err = fmt.Errorf("not connected")
		} else {
			// Frames are read into a fresh buffer, the data is handed to the caller
			f, err = readFrame(conn, nil)
		}

		if err != nil {
			c.failPending(fmt.Errorf("error reading response: %w", err))
			if c.stopped() {
				return
			}

			Logger.Warningf("Connection to %s lost: %v", c.endpoint, err)
			if !c.reconnectLoop() {
				return
			}
			continue
		}

		pending, found := c.requestChans.Load(f.requestID)
		if !found {
			// late items of cancelled or timed out requests are expected
			Logger.Debugf("Received frame for unknown request ID %d with shard ID %d", f.requestID, f.shardID)
			continue
		}
		pending.deliver(responseResult{kind: f.kind, data: f.data})
	}
}

// reconnectLoop tries to restore the connection until it succeeds or the transport is closed
func (c *clientConnection) reconnectLoop() bool {
	for attempt := 0; ; attempt++ {
		if c.stopped() {
			return false
		}
		err := c.reconnect()
		if err == nil {
			Logger.Infof("Reconnected to %s", c.endpoint)
			return true
		}
		Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
		backoff(attempt)
	}
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	if c.stopped() {
		_ = conn.Close()
		return fmt.Errorf("transport closed")
	}

	c.conn = conn
	return nil
}
