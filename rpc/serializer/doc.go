// Package serializer converts common.Message values to bytes and back.
//
// Four formats are available, all stateless and safe for concurrent use:
//
//   - binary: a 3 byte header (type and a flag word marking the present fields)
//     followed by the present fields only. Smallest and fastest, the default.
//   - proto: the protobuf wire format written with protowire. It matches a
//     plain proto3 message so clients in other languages can use generated code.
//   - json: human-readable, message types are written by name. Useful for debugging.
//   - gob: Go's gob encoding. Every message repeats its type description which
//     makes it the largest format.
//
// Deserialize rejects messages of an unknown type. Client and server must use
// the same format, it is not negotiated.
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewGetRequest([]byte("key")))
//	var msg common.Message
//	err = s.Deserialize(data, &msg)
package serializer
