package serializer

import (
	"github.com/ValentinKolb/memDB/rpc/common"
	"google.golang.org/protobuf/encoding/protowire"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
	"Proto":  NewProtoSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		{
			MsgType: common.MsgTSet,
			Key:     []byte("test-key"),
			Value:   []byte("test-value"),
		},

		// DSet response
		{
			MsgType: common.MsgTDSet,
			Count:   3,
			Time:    1700000000123456789,
		},

		// Pop request with binary key
		{
			MsgType: common.MsgTPop,
			Key:     []byte{0x00, 0xff, 0x7f},
			Front:   true,
		},

		// Range request
		{
			MsgType: common.MsgTRange,
			Lower:   common.Bound{Kind: 1, Key: []byte("a")},
			Upper:   common.Bound{Kind: 2, Key: []byte("z")},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			ErrCode: 4,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTSAdd,
			Key:     []byte("test-set-key"),
			DKey:    []byte("member"),
			Value:   []byte("test-value"),
			Front:   true,
			Lower:   common.Bound{Kind: 1, Key: []byte("lower")},
			Upper:   common.Bound{Kind: 1, Key: []byte("upper")},
			Count:   42,
			Time:    -1,
			Ok:      true,
			ErrCode: 3,
			Err:     "not a set",
			Meta:    []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestEmptyBytesPreserved tests that the compact serializers keep empty but set byte fields.
// Empty keys are valid keys of the store.
func TestEmptyBytesPreserved(t *testing.T) {
	for _, name := range []string{"Binary", "Proto"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			msg := common.Message{
				MsgType: common.MsgTRange,
				Key:     []byte{},
				Lower:   common.Bound{Kind: 1, Key: []byte{}},
				Upper:   common.Bound{Kind: 1, Key: []byte{}},
			}

			data, err := serializer.Serialize(msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if result.Key == nil {
				t.Errorf("empty key decoded as nil")
			}
			if result.Value != nil {
				t.Errorf("unset value decoded as %v", result.Value)
			}
			if result.Lower.Kind != 1 || result.Upper.Kind != 1 {
				t.Errorf("bound kinds lost: %+v %+v", result.Lower, result.Upper)
			}
		})
	}
}

// TestDeserializeDoesNotAlias tests that decoded messages do not share memory with the input
func TestDeserializeDoesNotAlias(t *testing.T) {
	for _, name := range []string{"Binary", "Proto"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTGet, Key: []byte("key")})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// overwrite the input buffer
			for i := range data {
				data[i] = 0
			}
			if string(result.Key) != "key" {
				t.Errorf("key changed with the input buffer: %q", result.Key)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and only one flag byte
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Missing count",
			data:        []byte{1, 0, 64, 0, 0, 0}, // Count flag set but only 3 bytes follow
			expectError: true,
		},
		{
			name:        "Missing bound key",
			data:        []byte{1, 0, 16, 1}, // Lower bound kind without key
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestInvalidProtoData tests how the proto serializer handles corrupt or invalid data
func TestInvalidProtoData(t *testing.T) {
	serializer := NewProtoSerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{"Empty data", []byte{}, false},
		{"Truncated varint", []byte{0x08, 0x80}, true},
		{"Truncated bytes", []byte{0x12, 0x05, 'a'}, true},
		{"Unknown field is skipped", []byte{0xa8, 0x01, 0x01, 0x08, 0x04}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestUnknownMessageTypeRejected tests that no serializer accepts a message of an unknown type
func TestUnknownMessageTypeRejected(t *testing.T) {
	raw := map[string][]byte{
		"JSON":   []byte(`{"msg_type":"teleport","lower":{},"upper":{}}`),
		"Binary": {0xEE, 0x00, 0x00},
		"Proto":  {0x08, 0xEE, 0x01},
	}

	for name, data := range raw {
		t.Run(name, func(t *testing.T) {
			var msg common.Message
			if err := testSerializers[name]().Deserialize(data, &msg); err == nil {
				t.Errorf("expected error for unknown message type, got %+v", msg)
			}
		})
	}

	t.Run("GOB", func(t *testing.T) {
		s := NewGOBSerializer()
		data, err := s.Serialize(common.Message{MsgType: common.MessageType(200)})
		if err != nil {
			t.Fatalf("Failed to serialize: %v", err)
		}
		var msg common.Message
		if err := s.Deserialize(data, &msg); err == nil {
			t.Error("expected error for unknown message type")
		}
	})
}

func TestUnknownBoundKindPassesThrough(t *testing.T) {
	// kinds outside included/excluded are rejected by the store, not the codec
	msg := common.Message{
		MsgType: common.MsgTRange,
		Lower:   common.Bound{Kind: 1, Key: []byte("m")},
		Upper:   common.Bound{Kind: 7, Key: []byte("n")},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			data, err := s.Serialize(msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			var got common.Message
			if err := s.Deserialize(data, &got); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if got.Upper.Kind != 7 {
				t.Errorf("upper kind = %d, want 7", got.Upper.Kind)
			}
		})
	}
}

func TestProtoBoundKindOverflow(t *testing.T) {
	// 256 and 257 would truncate to unbounded and included
	for _, kind := range []uint64{256, 257, 1 << 40} {
		var bound []byte
		bound = protowire.AppendTag(bound, fieldBoundKind, protowire.VarintType)
		bound = protowire.AppendVarint(bound, kind)
		bound = protowire.AppendTag(bound, fieldBoundKey, protowire.BytesType)
		bound = protowire.AppendBytes(bound, []byte("n"))

		var data []byte
		data = protowire.AppendTag(data, fieldMsgType, protowire.VarintType)
		data = protowire.AppendVarint(data, uint64(common.MsgTRange))
		data = protowire.AppendTag(data, fieldUpper, protowire.BytesType)
		data = protowire.AppendBytes(data, bound)

		var msg common.Message
		if err := NewProtoSerializer().Deserialize(data, &msg); err == nil {
			t.Errorf("kind %d: expected error, got upper %+v", kind, msg.Upper)
		}
	}
}
