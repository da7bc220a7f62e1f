package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
//
// Layout: 1 byte MsgType, 2 bytes flags (big endian), then every present field in
// the order of the flags. Byte fields are prefixed with a 4 byte length, bounds are
// 1 byte kind followed by a length prefixed key, numbers are 8 bytes big endian.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     uint16 = 1 << 0
	hasDKey    uint16 = 1 << 1
	hasValue   uint16 = 1 << 2
	hasFront   uint16 = 1 << 3
	hasLower   uint16 = 1 << 4
	hasUpper   uint16 = 1 << 5
	hasCount   uint16 = 1 << 6
	hasTime    uint16 = 1 << 7
	hasOk      uint16 = 1 << 8
	hasErrCode uint16 = 1 << 9
	hasErr     uint16 = 1 << 10
	hasMeta    uint16 = 1 << 11
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, headerSize, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Key != nil {
		flags |= hasKey
		result = appendBytes(result, msg.Key)
	}
	if msg.DKey != nil {
		flags |= hasDKey
		result = appendBytes(result, msg.DKey)
	}
	if msg.Value != nil {
		flags |= hasValue
		result = appendBytes(result, msg.Value)
	}
	if msg.Front {
		flags |= hasFront
	}
	if msg.Lower.Kind != 0 {
		flags |= hasLower
		result = append(result, msg.Lower.Kind)
		result = appendBytes(result, msg.Lower.Key)
	}
	if msg.Upper.Kind != 0 {
		flags |= hasUpper
		result = append(result, msg.Upper.Kind)
		result = appendBytes(result, msg.Upper.Key)
	}
	if msg.Count != 0 {
		flags |= hasCount
		result = binary.BigEndian.AppendUint64(result, msg.Count)
	}
	if msg.Time != 0 {
		flags |= hasTime
		result = binary.BigEndian.AppendUint64(result, uint64(msg.Time))
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.ErrCode != 0 {
		flags |= hasErrCode
		result = binary.BigEndian.AppendUint64(result, msg.ErrCode)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		result = appendBytes(result, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := reader{data: data, pos: headerSize}

	var err error
	if flags&hasKey != 0 {
		if msg.Key, err = r.bytes("key"); err != nil {
			return err
		}
	}
	if flags&hasDKey != 0 {
		if msg.DKey, err = r.bytes("dkey"); err != nil {
			return err
		}
	}
	if flags&hasValue != 0 {
		if msg.Value, err = r.bytes("value"); err != nil {
			return err
		}
	}
	msg.Front = flags&hasFront != 0
	if flags&hasLower != 0 {
		if msg.Lower, err = r.bound("lower bound"); err != nil {
			return err
		}
	}
	if flags&hasUpper != 0 {
		if msg.Upper, err = r.bound("upper bound"); err != nil {
			return err
		}
	}
	if flags&hasCount != 0 {
		if msg.Count, err = r.uint64("count"); err != nil {
			return err
		}
	}
	if flags&hasTime != 0 {
		ts, err := r.uint64("time")
		if err != nil {
			return err
		}
		msg.Time = int64(ts)
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasErrCode != 0 {
		if msg.ErrCode, err = r.uint64("error code"); err != nil {
			return err
		}
	}
	if flags&hasErr != 0 {
		errBytes, err := r.bytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(errBytes)
	}
	if flags&hasMeta != 0 {
		if msg.Meta, err = r.bytes("meta"); err != nil {
			return err
		}
	}

	return checkType(msg)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the exact size needed for the serialized message
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Key != nil {
		size += 4 + len(msg.Key)
	}
	if msg.DKey != nil {
		size += 4 + len(msg.DKey)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Lower.Kind != 0 {
		size += 1 + 4 + len(msg.Lower.Key)
	}
	if msg.Upper.Kind != 0 {
		size += 1 + 4 + len(msg.Upper.Key)
	}
	if msg.Count != 0 {
		size += 8
	}
	if msg.Time != 0 {
		size += 8
	}
	if msg.ErrCode != 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// appendBytes appends a 4 byte length prefix and the data
func appendBytes(dst, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}

// reader reads the fields of a serialized message in order
type reader struct {
	data []byte
	pos  int
}

func (r *reader) bytes(field string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4

	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	// copy so the message does not alias the (pooled) input buffer
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) bound(field string) (common.Bound, error) {
	if r.pos+1 > len(r.data) {
		return common.Bound{}, fmt.Errorf("data too short for %s kind", field)
	}
	kind := r.data[r.pos]
	r.pos++
	key, err := r.bytes(field)
	if err != nil {
		return common.Bound{}, err
	}
	return common.Bound{Kind: kind, Key: key}, nil
}
