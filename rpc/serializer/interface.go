package serializer

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// IRPCSerializer is the interface for all message serializers used to encode
// the frames of a display connection
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// New returns the serializer registered under name (json, gob or binary).
// An empty name selects binary.
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "binary", "":
		return NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
