package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/serializer"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"time"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It connects the transport and returns a store.IStore
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key []byte, v *structpb.Value) (time.Time, error) {
	b, err := encodeValue(v)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := i.invoke(common.NewSetRequest(key, b))
	if err != nil {
		return time.Time{}, err
	}
	return resp.GetTime(), nil
}

func (i *rpcStore) Get(key []byte) (*structpb.Value, error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, err
	}
	return decodeValue(resp.Value)
}

func (i *rpcStore) DSet(key, dkey []byte, v *structpb.Value) (uint64, time.Time, error) {
	b, err := encodeValue(v)
	if err != nil {
		return 0, time.Time{}, err
	}
	resp, err := i.invoke(common.NewDSetRequest(key, dkey, b))
	if err != nil {
		return 0, time.Time{}, err
	}
	return resp.Count, resp.GetTime(), nil
}

func (i *rpcStore) DGet(key, dkey []byte) (*structpb.Value, error) {
	resp, err := i.invoke(common.NewDGetRequest(key, dkey))
	if err != nil {
		return nil, err
	}
	return decodeValue(resp.Value)
}

func (i *rpcStore) DHas(key, dkey []byte) (bool, error) {
	resp, err := i.invoke(common.NewDHasRequest(key, dkey))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Push(key []byte, v *structpb.Value, front bool) (uint64, time.Time, error) {
	b, err := encodeValue(v)
	if err != nil {
		return 0, time.Time{}, err
	}
	resp, err := i.invoke(common.NewPushRequest(key, b, front))
	if err != nil {
		return 0, time.Time{}, err
	}
	return resp.Count, resp.GetTime(), nil
}

func (i *rpcStore) Pop(key []byte, front bool) (*structpb.Value, time.Time, error) {
	resp, err := i.invoke(common.NewPopRequest(key, front))
	if err != nil {
		return nil, time.Time{}, err
	}
	v, err := decodeValue(resp.Value)
	if err != nil {
		return nil, time.Time{}, err
	}
	return v, resp.GetTime(), nil
}

func (i *rpcStore) QLen(key []byte) (uint64, error) {
	resp, err := i.invoke(common.NewQLenRequest(key))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (i *rpcStore) SAdd(key, member []byte) (uint64, time.Time, error) {
	resp, err := i.invoke(common.NewSAddRequest(key, member))
	if err != nil {
		return 0, time.Time{}, err
	}
	return resp.Count, resp.GetTime(), nil
}

func (i *rpcStore) SDel(key, member []byte) (uint64, time.Time, error) {
	resp, err := i.invoke(common.NewSDelRequest(key, member))
	if err != nil {
		return 0, time.Time{}, err
	}
	return resp.Count, resp.GetTime(), nil
}

func (i *rpcStore) SLen(key []byte) (uint64, error) {
	resp, err := i.invoke(common.NewSLenRequest(key))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (i *rpcStore) Del(key []byte) (time.Time, error) {
	resp, err := i.invoke(common.NewDelRequest(key))
	if err != nil {
		return time.Time{}, err
	}
	return resp.GetTime(), nil
}

func (i *rpcStore) Range(lower, upper db.Bound) (store.KeyStream, error) {
	reqBytes, err := i.serializer.Serialize(*common.NewRangeRequest(lower, upper))
	if err != nil {
		return nil, store.Internal(fmt.Sprintf("RPC client - failed to serialize request: %v", err))
	}

	stream, err := i.transport.Stream(i.shardId, reqBytes)
	if err != nil {
		return nil, store.Internal(fmt.Sprintf("RPC client - transport error: %v", err))
	}

	return &rpcKeyStream{
		stream:     stream,
		serializer: i.serializer,
	}, nil
}

func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invoke(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}

	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, store.Internal(fmt.Sprintf("RPC client - invalid database info: %v", err))
	}
	return info, nil
}

// Close closes the transport, the store on the server keeps running
func (i *rpcStore) Close() error {
	return i.transport.Close()
}

// --------------------------------------------------------------------------
// Key Stream
// --------------------------------------------------------------------------

// rpcKeyStream turns the messages of a range stream back into keys
type rpcKeyStream struct {
	stream     transport.IClientStream
	serializer serializer.IRPCSerializer
	err        error
}

func (s *rpcKeyStream) Recv() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	b, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, s.finish(store.Internal("RPC client - stream ended without end marker"))
	}
	if err != nil {
		return nil, s.finish(store.Internal(fmt.Sprintf("RPC client - transport error: %v", err)))
	}

	var msg common.Message
	if err := s.serializer.Deserialize(b, &msg); err != nil {
		return nil, s.finish(store.Internal(fmt.Sprintf("RPC client - failed to deserialize response: %v", err)))
	}

	if err := msg.GetError(); err != nil {
		return nil, s.finish(err)
	}

	switch msg.MsgType {
	case common.MsgTRange:
		if msg.Key == nil {
			return []byte{}, nil
		}
		return msg.Key, nil
	case common.MsgTStreamEnd:
		return nil, s.finish(io.EOF)
	default:
		return nil, s.finish(store.Internal(fmt.Sprintf("RPC client - unexpected message type in stream: %s", msg.MsgType)))
	}
}

// finish makes err sticky and releases the transport stream
func (s *rpcKeyStream) finish(err error) error {
	s.err = err
	_ = s.stream.Close()
	return err
}

func (s *rpcKeyStream) Close() {
	if s.err == nil {
		s.err = io.EOF
	}
	_ = s.stream.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (i *rpcStore) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
}

func encodeValue(v *structpb.Value) ([]byte, error) {
	b, err := value.Encode(v)
	if err != nil {
		return nil, store.InvalidArgument(fmt.Sprintf("invalid value: %v", err))
	}
	return b, nil
}

func decodeValue(b []byte) (*structpb.Value, error) {
	v, err := value.Decode(b)
	if err != nil {
		return nil, store.Internal(fmt.Sprintf("RPC client - %v", err))
	}
	return v, nil
}
