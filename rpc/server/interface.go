package server

import (
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and a store as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, store store.IStore) (resp *common.Message)

	// HandleStream handles a request answered by a stream of messages.
	// Every message is passed to send. An error inside the stream is sent as a message
	// and ends the stream, a returned error means the stream could not be delivered.
	HandleStream(req *common.Message, store store.IStore, send func(resp *common.Message) error) error
}
