package serializer

import (
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
)

// IRPCSerializer converts Messages to and from their wire representation.
// Implementations are stateless and safe for concurrent use.
type IRPCSerializer interface {
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Messages of an unknown type are rejected.
	Deserialize(b []byte, msg *common.Message) error
}

// checkType rejects decoded messages whose type is not part of the protocol
func checkType(msg *common.Message) error {
	if !msg.MsgType.Valid() {
		return fmt.Errorf("unknown message type %d", msg.MsgType)
	}
	return nil
}
