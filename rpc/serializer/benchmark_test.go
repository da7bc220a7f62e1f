package serializer

import (
	"github.com/ValentinKolb/memDB/lib/value"
	"github.com/ValentinKolb/memDB/rpc/common"
	"testing"
)

// benchMessage is a named message shape that shows up on the wire
type benchMessage struct {
	name string
	msg  common.Message
}

func benchPayload(raw string) []byte {
	b, err := value.Encode(value.ParseJSON(raw))
	if err != nil {
		panic(err)
	}
	return b
}

func benchMessages() []benchMessage {
	blob := make([]byte, 16*1024)
	return []benchMessage{
		{"StreamEnd", common.Message{MsgType: common.MsgTStreamEnd}},
		{"Get", common.Message{MsgType: common.MsgTGet, Key: []byte("user:42")}},
		{"SetSmall", common.Message{MsgType: common.MsgTSet, Key: []byte("user:42"), Value: benchPayload(`"alice"`)}},
		{"SetStruct", common.Message{MsgType: common.MsgTSet, Key: []byte("user:42"), Value: benchPayload(`{"name":"alice","age":42,"tags":["a","b","c"],"active":true}`)}},
		{"SetBlob", common.Message{MsgType: common.MsgTSet, Key: []byte("blob"), Value: blob}},
		{"DSet", common.Message{MsgType: common.MsgTDSet, Key: []byte("session"), DKey: []byte("token"), Value: benchPayload(`"abcdef"`)}},
		{"PushFront", common.Message{MsgType: common.MsgTPush, Key: []byte("jobs"), Front: true, Value: benchPayload(`{"id":1}`)}},
		{"SAddReply", common.Message{MsgType: common.MsgTSAdd, Count: 1, Time: 1700000000123456789}},
		{"Range", common.Message{
			MsgType: common.MsgTRange,
			Lower:   common.Bound{Kind: 1, Key: []byte("user:0000")},
			Upper:   common.Bound{Kind: 2, Key: []byte("user:9999")},
		}},
		{"NotFound", common.Message{MsgType: common.MsgTGet, ErrCode: 1, Err: "key not found"}},
	}
}

// BenchmarkRoundTrip measures encode and decode per serializer and reports the encoded size
func BenchmarkRoundTrip(b *testing.B) {
	for name, factory := range testSerializers {
		for _, bm := range benchMessages() {
			b.Run(name+"/"+bm.name, func(b *testing.B) {
				s := factory()
				data, err := s.Serialize(bm.msg)
				if err != nil {
					b.Fatalf("serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "wire-bytes")
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					out, err := s.Serialize(bm.msg)
					if err != nil {
						b.Fatal(err)
					}
					var msg common.Message
					if err := s.Deserialize(out, &msg); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
