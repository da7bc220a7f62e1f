package value

import (
	"fmt"
	"github.com/gammazero/deque"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// --------------------------------------------------------------------------
// Kind
// --------------------------------------------------------------------------

// Kind is the type tag of a stored value
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindDictionary
	KindSet
	KindDeque
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindDictionary:
		return "dictionary"
	case KindSet:
		return "set"
	case KindDeque:
		return "deque"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// --------------------------------------------------------------------------
// Value variants
// --------------------------------------------------------------------------

// Value is the closed sum type of everything a key can hold.
// Only the types of this package implement it.
type Value interface {
	Kind() Kind
	// Size returns the number of payloads or members held by the value (1 for scalars)
	Size() int
	sealed()
}

// Scalar holds a single structured payload
type Scalar struct {
	V *structpb.Value
}

// Dictionary maps binary sub-keys (as string) to payloads
type Dictionary map[string]*structpb.Value

// Set holds binary members (as string)
type Set map[string]struct{}

// Deque is an ordered double-ended sequence of payloads
type Deque struct {
	q deque.Deque[*structpb.Value]
}

// NewScalar wraps a payload into a Scalar
func NewScalar(v *structpb.Value) *Scalar {
	return &Scalar{V: v}
}

// NewDictionary returns an empty Dictionary
func NewDictionary() Dictionary {
	return make(Dictionary)
}

// NewSet returns an empty Set
func NewSet() Set {
	return make(Set)
}

// NewDeque returns an empty Deque
func NewDeque() *Deque {
	return &Deque{}
}

func (s *Scalar) Kind() Kind    { return KindScalar }
func (d Dictionary) Kind() Kind { return KindDictionary }
func (s Set) Kind() Kind        { return KindSet }
func (d *Deque) Kind() Kind     { return KindDeque }

func (s *Scalar) Size() int    { return 1 }
func (d Dictionary) Size() int { return len(d) }
func (s Set) Size() int        { return len(s) }
func (d *Deque) Size() int     { return d.q.Len() }

func (s *Scalar) sealed()    {}
func (d Dictionary) sealed() {}
func (s Set) sealed()        {}
func (d *Deque) sealed()     {}

// --------------------------------------------------------------------------
// Variant-checked accessors
// --------------------------------------------------------------------------

// AsScalar returns the payload if v is a Scalar
func AsScalar(v Value) (*structpb.Value, bool) {
	s, ok := v.(*Scalar)
	if !ok {
		return nil, false
	}
	return s.V, true
}

// AsDictionary returns the map if v is a Dictionary
func AsDictionary(v Value) (Dictionary, bool) {
	d, ok := v.(Dictionary)
	return d, ok
}

// AsSet returns the member set if v is a Set
func AsSet(v Value) (Set, bool) {
	s, ok := v.(Set)
	return s, ok
}

// AsDeque returns the deque if v is a Deque
func AsDeque(v Value) (*Deque, bool) {
	d, ok := v.(*Deque)
	return d, ok
}

// --------------------------------------------------------------------------
// Deque operations
// --------------------------------------------------------------------------

// Push appends a payload at the front or the back and returns the new length
func (d *Deque) Push(v *structpb.Value, front bool) int {
	if front {
		d.q.PushFront(v)
	} else {
		d.q.PushBack(v)
	}
	return d.q.Len()
}

// Pop removes a payload from the front or the back.
// The boolean is false if the deque is empty.
func (d *Deque) Pop(front bool) (*structpb.Value, bool) {
	if d.q.Len() == 0 {
		return nil, false
	}
	if front {
		return d.q.PopFront(), true
	}
	return d.q.PopBack(), true
}

// Len returns the number of payloads in the deque
func (d *Deque) Len() int {
	return d.q.Len()
}

// At returns the payload at position i (0 is the front)
func (d *Deque) At(i int) *structpb.Value {
	return d.q.At(i)
}

// --------------------------------------------------------------------------
// Payload helpers
// --------------------------------------------------------------------------

// Present reports whether a payload is set. A payload without a kind is treated
// like a missing one because it cannot be told apart from "no value" on every wire format.
func Present(v *structpb.Value) bool {
	return v != nil && v.GetKind() != nil
}

// Clone deep copies a payload
func Clone(v *structpb.Value) *structpb.Value {
	if v == nil {
		return nil
	}
	return proto.Clone(v).(*structpb.Value)
}

// Encode converts a payload to its protobuf wire form. A nil payload encodes to nil.
func Encode(v *structpb.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return proto.Marshal(v)
}

// Decode parses the protobuf wire form of a payload. Empty input decodes to nil.
func Decode(b []byte) (*structpb.Value, error) {
	if len(b) == 0 {
		return nil, nil
	}
	v := &structpb.Value{}
	if err := proto.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return v, nil
}

// ParseJSON parses a JSON document into a payload.
// Input that is not valid JSON is taken as a plain string.
func ParseJSON(s string) *structpb.Value {
	v := &structpb.Value{}
	if err := protojson.Unmarshal([]byte(s), v); err != nil {
		return structpb.NewStringValue(s)
	}
	return v
}

// FormatJSON renders a payload as compact JSON
func FormatJSON(v *structpb.Value) string {
	if v == nil {
		return "null"
	}
	b, err := protojson.MarshalOptions{}.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(b)
}
