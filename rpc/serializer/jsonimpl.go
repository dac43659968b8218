package serializer

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// NewJSONSerializer creates a serializer that writes display frames as JSON
// objects. Header fields with a zero value are omitted and the body is base64
// encoded, which keeps captured traffic readable when debugging a server.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", msg.Kind, err)
	}
	return data, nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("malformed json frame: %w", err)
	}
	if msg.Kind == common.MsgKUnknown {
		return fmt.Errorf("json frame without message kind")
	}
	return nil
}
