// Package value defines the closed set of value variants a memDB key can hold.
//
// Every key of the store maps to exactly one Value. A Value is one of:
//
//   - Scalar: a single opaque structured payload (google.protobuf.Value)
//   - Dictionary: a mapping from a binary sub-key to a Scalar payload
//   - Set: a set of binary members without duplicates
//   - Deque: a double-ended sequence of Scalar payloads in insertion/removal order
//
// The variant of a stored value can only be inspected through the variant-checked
// accessors AsScalar, AsDictionary, AsSet and AsDeque. Each accessor reports a
// type mismatch through its boolean result, which lets callers refuse an operation
// without touching the stored value.
//
// Payload helpers:
//
//   - Clone: deep copies a payload so readers never share memory with the store
//   - Present: reports whether a payload carries a kind (a kind-less payload counts as absent)
//   - Encode/Decode: protobuf wire encoding used by the rpc layer
//   - ParseJSON/FormatJSON: JSON conversion used by the command line client
package value
