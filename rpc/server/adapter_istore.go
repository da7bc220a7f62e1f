package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/store"
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/ValentinKolb/memDB/rpc/common"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	// Decode the payload of write requests
	var val *structpb.Value
	switch req.MsgType {
	case common.MsgTSet, common.MsgTDSet, common.MsgTPush:
		v, err := value.Decode(req.Value)
		if err != nil {
			return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
		}
		val = v
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTSet:
		ts, err := s.Set(req.Key, val)
		return common.NewSetResponse(ts, err)
	case common.MsgTGet:
		v, err := s.Get(req.Key)
		return encodeValue(v, err, common.NewGetResponse)
	case common.MsgTDSet:
		size, ts, err := s.DSet(req.Key, req.DKey, val)
		return common.NewDSetResponse(size, ts, err)
	case common.MsgTDGet:
		v, err := s.DGet(req.Key, req.DKey)
		return encodeValue(v, err, common.NewDGetResponse)
	case common.MsgTDHas:
		found, err := s.DHas(req.Key, req.DKey)
		return common.NewDHasResponse(found, err)
	case common.MsgTPush:
		length, ts, err := s.Push(req.Key, val, req.Front)
		return common.NewPushResponse(length, ts, err)
	case common.MsgTPop:
		v, ts, err := s.Pop(req.Key, req.Front)
		return encodeValue(v, err, func(b []byte, err error) *common.Message {
			return common.NewPopResponse(b, ts, err)
		})
	case common.MsgTQLen:
		length, err := s.QLen(req.Key)
		return common.NewQLenResponse(length, err)
	case common.MsgTSAdd:
		size, ts, err := s.SAdd(req.Key, req.DKey)
		return common.NewSAddResponse(size, ts, err)
	case common.MsgTSDel:
		size, ts, err := s.SDel(req.Key, req.DKey)
		return common.NewSDelResponse(size, ts, err)
	case common.MsgTSLen:
		size, err := s.SLen(req.Key)
		return common.NewSLenResponse(size, err)
	case common.MsgTDel:
		ts, err := s.Del(req.Key)
		return common.NewDelResponse(ts, err)
	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		return common.NewInfoResponse(info, err)
	case common.MsgTRange:
		return common.NewErrorResponse(store.RetCUnsupportedOperation, "range must be requested as a stream")
	default:
		return common.NewErrorResponse(
			store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

func (adapter *iStoreServerAdapterImpl) HandleStream(req *common.Message, s store.IStore, send func(*common.Message) error) error {
	if s == nil {
		return send(common.NewErrorResponse(store.RetCInternalError, "handler: store is nil"))
	}

	if req.MsgType != common.MsgTRange {
		return send(common.NewErrorResponse(
			store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported stream message type: %s", req.MsgType),
		))
	}

	keys, err := s.Range(req.Lower.ToDB(), req.Upper.ToDB())
	if err != nil {
		return send(common.NewRangeItemResponse(nil, err))
	}
	defer keys.Close()

	for {
		key, err := keys.Recv()
		if errors.Is(err, io.EOF) {
			return send(common.NewStreamEnd())
		}
		if err != nil {
			// errors inside the stream end it
			return send(common.NewRangeItemResponse(nil, err))
		}
		if err := send(common.NewRangeItemResponse(key, nil)); err != nil {
			return err
		}
	}
}

// encodeValue encodes a payload returned by the store into a response built by newResp
func encodeValue(v *structpb.Value, err error, newResp func([]byte, error) *common.Message) *common.Message {
	if err != nil {
		return newResp(nil, err)
	}
	b, encErr := value.Encode(v)
	if encErr != nil {
		return newResp(nil, store.Internal(fmt.Sprintf("failed to encode value: %v", encErr)))
	}
	return newResp(b, nil)
}
