package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
)

// NewGOBSerializer creates a serializer using Go's gob format.
// Every message carries its own type description, which makes gob the largest format.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var decoded common.Message
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&decoded); err != nil {
		return fmt.Errorf("invalid gob message: %w", err)
	}
	if err := checkType(&decoded); err != nil {
		return err
	}
	*msg = decoded
	return nil
}
