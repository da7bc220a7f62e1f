package value

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"testing"
)

func TestAccessors(t *testing.T) {
	tests := []struct {
		name   string
		value  Value
		kind   Kind
		scalar bool
		dict   bool
		set    bool
		deque  bool
	}{
		{name: "Scalar", value: NewScalar(structpb.NewNumberValue(1)), kind: KindScalar, scalar: true},
		{name: "Dictionary", value: NewDictionary(), kind: KindDictionary, dict: true},
		{name: "Set", value: NewSet(), kind: KindSet, set: true},
		{name: "Deque", value: NewDeque(), kind: KindDeque, deque: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.value.Kind(), tt.kind)
			}
			if _, ok := AsScalar(tt.value); ok != tt.scalar {
				t.Errorf("AsScalar ok = %v, want %v", ok, tt.scalar)
			}
			if _, ok := AsDictionary(tt.value); ok != tt.dict {
				t.Errorf("AsDictionary ok = %v, want %v", ok, tt.dict)
			}
			if _, ok := AsSet(tt.value); ok != tt.set {
				t.Errorf("AsSet ok = %v, want %v", ok, tt.set)
			}
			if _, ok := AsDeque(tt.value); ok != tt.deque {
				t.Errorf("AsDeque ok = %v, want %v", ok, tt.deque)
			}
		})
	}
}

func TestDequeSymmetry(t *testing.T) {
	d := NewDeque()

	d.Push(structpb.NewNumberValue(1), false)
	d.Push(structpb.NewNumberValue(2), false)
	if n := d.Push(structpb.NewNumberValue(0), true); n != 3 {
		t.Fatalf("Push() = %d, want 3", n)
	}

	// front is 0, back is 2
	if v, ok := d.Pop(true); !ok || v.GetNumberValue() != 0 {
		t.Errorf("Pop(front) = %v, %v, want 0, true", v, ok)
	}
	if v, ok := d.Pop(false); !ok || v.GetNumberValue() != 2 {
		t.Errorf("Pop(back) = %v, %v, want 2, true", v, ok)
	}
	if d.Len() != 1 || d.At(0).GetNumberValue() != 1 {
		t.Errorf("unexpected remaining deque content, len=%d", d.Len())
	}

	d.Pop(true)
	if _, ok := d.Pop(true); ok {
		t.Errorf("Pop on empty deque should report false")
	}
	if d.Size() != 0 {
		t.Errorf("Size() = %d, want 0", d.Size())
	}
}

func TestPresent(t *testing.T) {
	if Present(nil) {
		t.Errorf("nil payload must not be present")
	}
	if Present(&structpb.Value{}) {
		t.Errorf("payload without kind must not be present")
	}
	if !Present(structpb.NewNullValue()) {
		t.Errorf("null payload must be present")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig, err := structpb.NewValue(map[string]interface{}{"a": 1.0})
	if err != nil {
		t.Fatal(err)
	}
	c := Clone(orig)
	c.GetStructValue().Fields["a"] = structpb.NewNumberValue(2)

	if orig.GetStructValue().Fields["a"].GetNumberValue() != 1 {
		t.Errorf("modifying the clone changed the original")
	}
	if Clone(nil) != nil {
		t.Errorf("Clone(nil) must be nil")
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		value *structpb.Value
	}{
		{name: "Number", value: structpb.NewNumberValue(42)},
		{name: "String", value: structpb.NewStringValue("hello")},
		{name: "Bool", value: structpb.NewBoolValue(true)},
		{name: "Null", value: structpb.NewNullValue()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !proto.Equal(got, tt.value) {
				t.Errorf("Decode(Encode(v)) = %v, want %v", got, tt.value)
			}
		})
	}

	if b, _ := Encode(nil); b != nil {
		t.Errorf("Encode(nil) = %v, want nil", b)
	}
	if v, err := Decode(nil); v != nil || err != nil {
		t.Errorf("Decode(nil) = %v, %v, want nil, nil", v, err)
	}
	if _, err := Decode([]byte{0xff, 0xff}); err == nil {
		t.Errorf("Decode of garbage should fail")
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		input string
		check func(v *structpb.Value) bool
	}{
		{input: "42", check: func(v *structpb.Value) bool { return v.GetNumberValue() == 42 }},
		{input: `"text"`, check: func(v *structpb.Value) bool { return v.GetStringValue() == "text" }},
		{input: "plain", check: func(v *structpb.Value) bool { return v.GetStringValue() == "plain" }},
		{input: "true", check: func(v *structpb.Value) bool { return v.GetBoolValue() }},
		{input: `{"a":1}`, check: func(v *structpb.Value) bool {
			return v.GetStructValue().GetFields()["a"].GetNumberValue() == 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if v := ParseJSON(tt.input); !tt.check(v) {
				t.Errorf("ParseJSON(%q) = %v", tt.input, v)
			}
		})
	}

	if got := FormatJSON(structpb.NewNumberValue(7)); got != "7" {
		t.Errorf("FormatJSON() = %q, want %q", got, "7")
	}
}
