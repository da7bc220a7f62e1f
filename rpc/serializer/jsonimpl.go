package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
)

// NewJSONSerializer creates a serializer producing human-readable JSON.
// Message types are written by name and byte fields as base64.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var decoded common.Message
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	if err := checkType(&decoded); err != nil {
		return err
	}
	*msg = decoded
	return nil
}
