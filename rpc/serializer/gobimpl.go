package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// NewGOBSerializer creates a serializer that writes display frames in Go's gob
// format. Every frame carries its own type description, so frames are larger
// than with the binary serializer. Only useful between two Go peers.
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

type gobSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", msg.Kind, err)
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(msg); err != nil {
		return fmt.Errorf("malformed gob frame: %w", err)
	}
	if msg.Kind == common.MsgKUnknown {
		return fmt.Errorf("gob frame without message kind")
	}
	return nil
}
