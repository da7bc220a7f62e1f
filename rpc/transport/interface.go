package transport

import (
	"github.com/ValentinKolb/memDB/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// ServerStreamHandleFunc handles a request whose answer is a stream of messages.
// Every message is handed to send in order. send returns an error once the client
// is gone or cancelled the stream, the handler should stop producing then.
// A returned error is reported to the client as a transport failure.
type ServerStreamHandleFunc func(shardId uint64, req []byte, send func(resp []byte) error) error

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// RegisterStreamHandler registers the handler for streaming requests
	RegisterStreamHandler(handler ServerStreamHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until the transport fails or Shutdown is called.
	Listen(config common.ServerConfig) error
	// Shutdown stops listening and makes Listen return nil
	Shutdown() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientStream is the receiving side of a server stream
type IClientStream interface {
	// Recv returns the next message of the stream, io.EOF after the last one
	Recv() ([]byte, error)
	// Close releases the stream, the server is told to stop sending if it is still running
	Close() error
}

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Stream sends a request to the server and returns the stream of responses
	Stream(shardId uint64, req []byte) (IClientStream, error)
	// Close closes the transport connection
	Close() error
}
