package serializer

import (
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"google.golang.org/protobuf/encoding/protowire"
	"math"
)

// NewProtoSerializer creates a new serializer using the protobuf wire format.
// The message layout is equivalent to:
//
//	message Bound { uint32 kind = 1; bytes key = 2; }
//	message Message {
//	  uint32 msg_type = 1; bytes key = 2; bytes dkey = 3; bytes value = 4;
//	  bool front = 5; Bound lower = 6; Bound upper = 7; uint64 count = 8;
//	  int64 time = 9; bool ok = 10; uint64 err_code = 11; string err = 12;
//	  bytes meta = 13;
//	}
func NewProtoSerializer() IRPCSerializer {
	return &protoSerializerImpl{}
}

// protoSerializerImpl implements IRPCSerializer with protowire
type protoSerializerImpl struct {
}

const (
	fieldMsgType protowire.Number = iota + 1
	fieldKey
	fieldDKey
	fieldValue
	fieldFront
	fieldLower
	fieldUpper
	fieldCount
	fieldTime
	fieldOk
	fieldErrCode
	fieldErr
	fieldMeta
)

const (
	fieldBoundKind protowire.Number = 1
	fieldBoundKey  protowire.Number = 2
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (p protoSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b := make([]byte, 0, 32+len(msg.Key)+len(msg.DKey)+len(msg.Value)+len(msg.Meta))

	b = appendVarint(b, fieldMsgType, uint64(msg.MsgType))
	// byte fields are written when set, so an empty key survives the round trip
	b = appendBytesField(b, fieldKey, msg.Key)
	b = appendBytesField(b, fieldDKey, msg.DKey)
	b = appendBytesField(b, fieldValue, msg.Value)
	if msg.Front {
		b = appendVarint(b, fieldFront, 1)
	}
	b = appendBound(b, fieldLower, msg.Lower)
	b = appendBound(b, fieldUpper, msg.Upper)
	b = appendVarint(b, fieldCount, msg.Count)
	b = appendVarint(b, fieldTime, uint64(msg.Time))
	if msg.Ok {
		b = appendVarint(b, fieldOk, 1)
	}
	b = appendVarint(b, fieldErrCode, msg.ErrCode)
	if msg.Err != "" {
		b = protowire.AppendTag(b, fieldErr, protowire.BytesType)
		b = protowire.AppendString(b, msg.Err)
	}
	b = appendBytesField(b, fieldMeta, msg.Meta)

	return b, nil
}

func (p protoSerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	*msg = common.Message{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			setVarintField(msg, num, v)

		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if err := setBytesField(msg, num, v); err != nil {
				return err
			}

		default:
			// skip unknown fields
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return checkType(msg)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendBound(b []byte, num protowire.Number, bound common.Bound) []byte {
	if bound.Kind == 0 {
		return b
	}
	var inner []byte
	inner = appendVarint(inner, fieldBoundKind, uint64(bound.Kind))
	inner = protowire.AppendTag(inner, fieldBoundKey, protowire.BytesType)
	inner = protowire.AppendBytes(inner, bound.Key)

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func setVarintField(msg *common.Message, num protowire.Number, v uint64) {
	switch num {
	case fieldMsgType:
		msg.MsgType = common.MessageType(v)
	case fieldFront:
		msg.Front = v != 0
	case fieldCount:
		msg.Count = v
	case fieldTime:
		msg.Time = int64(v)
	case fieldOk:
		msg.Ok = v != 0
	case fieldErrCode:
		msg.ErrCode = v
	}
}

func setBytesField(msg *common.Message, num protowire.Number, v []byte) error {
	switch num {
	case fieldKey:
		msg.Key = clone(v)
	case fieldDKey:
		msg.DKey = clone(v)
	case fieldValue:
		msg.Value = clone(v)
	case fieldErr:
		msg.Err = string(v)
	case fieldMeta:
		msg.Meta = clone(v)
	case fieldLower, fieldUpper:
		bound, err := consumeBound(v)
		if err != nil {
			return err
		}
		if num == fieldLower {
			msg.Lower = bound
		} else {
			msg.Upper = bound
		}
	}
	return nil
}

func consumeBound(data []byte) (common.Bound, error) {
	var bound common.Bound
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return bound, fmt.Errorf("invalid bound: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldBoundKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return bound, fmt.Errorf("invalid bound kind: %w", protowire.ParseError(n))
			}
			if v > math.MaxUint8 {
				return bound, fmt.Errorf("invalid bound kind %d", v)
			}
			bound.Kind = uint8(v)
			data = data[n:]
		case num == fieldBoundKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return bound, fmt.Errorf("invalid bound key: %w", protowire.ParseError(n))
			}
			bound.Key = clone(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return bound, fmt.Errorf("invalid bound field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return bound, nil
}

// clone copies v so the message does not alias the input buffer. The result is never nil.
func clone(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
