package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"time"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   []byte `json:"key,omitempty"`   // Used for: all operations except Info, Range items carry the key
	DKey  []byte `json:"dkey,omitempty"`  // Used for: DSet, DGet, DHas (sub-key), SAdd, SDel (member)
	Value []byte `json:"value,omitempty"` // protobuf encoded payload. Used for: Set, DSet, Push (request), Get, DGet, Pop (response)
	Front bool   `json:"front,omitempty"` // Used for: Push, Pop
	Lower Bound  `json:"lower"`           // Used for: Range
	Upper Bound  `json:"upper"`           // Used for: Range

	// Response only fields
	Count   uint64 `json:"count,omitempty"`    // Used for: DSet, Push, QLen, SAdd, SDel, SLen responses
	Time    int64  `json:"time,omitempty"`     // Unix nanoseconds. Used for: all write responses
	Ok      bool   `json:"ok,omitempty"`       // Used for: DHas responses
	ErrCode uint64 `json:"err_code,omitempty"` // store.RetCode of the error
	Err     string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info (JSON encoded db.DatabaseInfo), Custom
}

// Bound is the wire form of a db.Bound
type Bound struct {
	Kind uint8  `json:"kind"`
	Key  []byte `json:"key,omitempty"`
}

// BoundFromDB converts a db.Bound to its wire form
func BoundFromDB(b db.Bound) Bound {
	return Bound{Kind: uint8(b.Kind), Key: b.Key}
}

// ToDB converts the wire form back to a db.Bound
func (b Bound) ToDB() db.Bound {
	return db.Bound{Kind: db.BoundKind(b.Kind), Key: b.Key}
}

// GetTime returns the timestamp carried by the message
func (m *Message) GetTime() time.Time {
	if m.Time == 0 {
		return time.Time{}
	}
	return time.Unix(0, m.Time)
}

// GetError rebuilds the store error carried by the message, nil if there is none
func (m *Message) GetError() error {
	if m.Err == "" && m.ErrCode == uint64(store.RetCSuccess) {
		return nil
	}
	code := store.RetCode(m.ErrCode)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// setError stores err in the message, keeping the return code of store errors
func (m *Message) setError(err error) *Message {
	if err == nil {
		return m
	}
	var e *store.Error
	if errors.As(err, &e) {
		m.ErrCode = uint64(e.Code)
		m.Err = e.Msg
	} else {
		m.ErrCode = uint64(store.RetCInternalError)
		m.Err = err.Error()
	}
	return m
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// --------------------------------------------------------------------------
// Message Factory Functions - Scalar
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key, value []byte) *Message {
	return &Message{
		MsgType: MsgTSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTSet,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key []byte) *Message {
	return &Message{
		MsgType: MsgTGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTGet,
		Value:   value,
	}
	return msg.setError(err)
}

// --------------------------------------------------------------------------
// Message Factory Functions - Dictionary
// --------------------------------------------------------------------------

// NewDSetRequest creates a new DSet request
func NewDSetRequest(key, dkey, value []byte) *Message {
	return &Message{
		MsgType: MsgTDSet,
		Key:     key,
		DKey:    dkey,
		Value:   value,
	}
}

// NewDSetResponse creates a new DSet response
func NewDSetResponse(size uint64, ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTDSet,
		Count:   size,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewDGetRequest creates a new DGet request
func NewDGetRequest(key, dkey []byte) *Message {
	return &Message{
		MsgType: MsgTDGet,
		Key:     key,
		DKey:    dkey,
	}
}

// NewDGetResponse creates a new DGet response
func NewDGetResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTDGet,
		Value:   value,
	}
	return msg.setError(err)
}

// NewDHasRequest creates a new DHas request
func NewDHasRequest(key, dkey []byte) *Message {
	return &Message{
		MsgType: MsgTDHas,
		Key:     key,
		DKey:    dkey,
	}
}

// NewDHasResponse creates a new DHas response
func NewDHasResponse(found bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTDHas,
		Ok:      found,
	}
	return msg.setError(err)
}

// --------------------------------------------------------------------------
// Message Factory Functions - Deque
// --------------------------------------------------------------------------

// NewPushRequest creates a new Push request
func NewPushRequest(key, value []byte, front bool) *Message {
	return &Message{
		MsgType: MsgTPush,
		Key:     key,
		Value:   value,
		Front:   front,
	}
}

// NewPushResponse creates a new Push response
func NewPushResponse(length uint64, ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTPush,
		Count:   length,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewPopRequest creates a new Pop request
func NewPopRequest(key []byte, front bool) *Message {
	return &Message{
		MsgType: MsgTPop,
		Key:     key,
		Front:   front,
	}
}

// NewPopResponse creates a new Pop response
func NewPopResponse(value []byte, ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTPop,
		Value:   value,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewQLenRequest creates a new QLen request
func NewQLenRequest(key []byte) *Message {
	return &Message{
		MsgType: MsgTQLen,
		Key:     key,
	}
}

// NewQLenResponse creates a new QLen response
func NewQLenResponse(length uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTQLen,
		Count:   length,
	}
	return msg.setError(err)
}

// --------------------------------------------------------------------------
// Message Factory Functions - Set
// --------------------------------------------------------------------------

// NewSAddRequest creates a new SAdd request
func NewSAddRequest(key, member []byte) *Message {
	return &Message{
		MsgType: MsgTSAdd,
		Key:     key,
		DKey:    member,
	}
}

// NewSAddResponse creates a new SAdd response
func NewSAddResponse(size uint64, ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTSAdd,
		Count:   size,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewSDelRequest creates a new SDel request
func NewSDelRequest(key, member []byte) *Message {
	return &Message{
		MsgType: MsgTSDel,
		Key:     key,
		DKey:    member,
	}
}

// NewSDelResponse creates a new SDel response
func NewSDelResponse(size uint64, ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTSDel,
		Count:   size,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewSLenRequest creates a new SLen request
func NewSLenRequest(key []byte) *Message {
	return &Message{
		MsgType: MsgTSLen,
		Key:     key,
	}
}

// NewSLenResponse creates a new SLen response
func NewSLenResponse(size uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTSLen,
		Count:   size,
	}
	return msg.setError(err)
}

// --------------------------------------------------------------------------
// Message Factory Functions - Key Space
// --------------------------------------------------------------------------

// NewDelRequest creates a new Del request
func NewDelRequest(key []byte) *Message {
	return &Message{
		MsgType: MsgTDel,
		Key:     key,
	}
}

// NewDelResponse creates a new Del response
func NewDelResponse(ts time.Time, err error) *Message {
	msg := &Message{
		MsgType: MsgTDel,
		Time:    unixNano(ts),
	}
	return msg.setError(err)
}

// NewRangeRequest creates a new Range request. The response is a stream of
// range items terminated by a stream end message.
func NewRangeRequest(lower, upper db.Bound) *Message {
	return &Message{
		MsgType: MsgTRange,
		Lower:   BoundFromDB(lower),
		Upper:   BoundFromDB(upper),
	}
}

// NewRangeItemResponse creates a single item of a range stream.
// A non nil error ends the stream.
func NewRangeItemResponse(key []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTRange,
		Key:     key,
	}
	return msg.setError(err)
}

// NewStreamEnd creates the message that terminates a stream
func NewStreamEnd() *Message {
	return &Message{
		MsgType: MsgTStreamEnd,
	}
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response, the info is JSON encoded into Meta
func NewInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
	}
	if err != nil {
		return msg.setError(err)
	}
	meta, mErr := json.Marshal(info)
	if mErr != nil {
		return msg.setError(fmt.Errorf("failed to encode database info: %w", mErr))
	}
	msg.Meta = meta
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		ErrCode: uint64(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:   "success",
	MsgTError:     "error",
	MsgTSet:       "set",
	MsgTGet:       "get",
	MsgTDSet:      "dset",
	MsgTDGet:      "dget",
	MsgTDHas:      "dhas",
	MsgTPush:      "push",
	MsgTPop:       "pop",
	MsgTQLen:      "qlen",
	MsgTSAdd:      "sadd",
	MsgTSDel:      "sdel",
	MsgTSLen:      "slen",
	MsgTDel:       "del",
	MsgTRange:     "range",
	MsgTInfo:      "info",
	MsgTStreamEnd: "stream_end",
	MsgTCustom:    "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	_, ok := msgTypeNames[t]
	return ok
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range msgTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred outside the store (e.g. unknown shard)

	// Scalar operations

	MsgTSet // Store a scalar
	MsgTGet // Read a scalar

	// Dictionary operations

	MsgTDSet // Set a dictionary entry
	MsgTDGet // Read a dictionary entry
	MsgTDHas // Test a dictionary entry

	// Deque operations

	MsgTPush // Push onto a deque
	MsgTPop  // Pop from a deque
	MsgTQLen // Length of a deque

	// Set operations

	MsgTSAdd // Add a set member
	MsgTSDel // Remove a set member
	MsgTSLen // Size of a set

	// Key space operations

	MsgTDel       // Delete a key
	MsgTRange     // Range scan request and stream item
	MsgTInfo      // Database statistics
	MsgTStreamEnd // Terminates a stream

	// Custom operations

	MsgTCustom // Custom operation type
)
