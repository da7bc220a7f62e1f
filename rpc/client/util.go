package client

import (
	"fmt"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/serializer"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCStore with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns the response message and the error carried by it.
// Failures of the transport or the serializer are reported as internal store errors.
// This method also checks if the type of the response is the expected type
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, store.Internal(fmt.Sprintf("RPC client - failed to serialize request: %v", err))
	}

	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		Logger.Debugf("request %s to shard %d failed: %v", req.MsgType, shardId, err)
		return nil, store.Internal(fmt.Sprintf("RPC client - transport error: %v", err))
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.Internal(fmt.Sprintf("RPC client - failed to deserialize response: %v", err))
	}

	// Error responses are not bound to the request type
	if resp.MsgType == common.MsgTError {
		return nil, resp.GetError()
	}

	if resp.MsgType != req.MsgType {
		return nil, store.Internal(fmt.Sprintf("RPC client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, resp.GetError()
}
