package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// NewBinarySerializer creates a new serializer using a compact binary format
// in which only present fields are written
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasOpcode   byte = 1 << 0
	hasMinor    byte = 1 << 1
	hasFlags    byte = 1 << 2
	hasSequence byte = 1 << 3
	hasResource byte = 1 << 4
	hasCode     byte = 1 << 5
	hasBody     byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, b.sizeBytes(msg))

	// Write message kind
	result[0] = byte(msg.Kind)

	var flags byte = 0
	pos := 2 // Start after Kind and flags

	if msg.Opcode != 0 {
		flags |= hasOpcode
		result[pos] = msg.Opcode
		pos += 1
	}

	if msg.Minor != 0 {
		flags |= hasMinor
		binary.BigEndian.PutUint16(result[pos:pos+2], msg.Minor)
		pos += 2
	}

	if msg.Flags != 0 {
		flags |= hasFlags
		result[pos] = msg.Flags
		pos += 1
	}

	if msg.Sequence != 0 {
		flags |= hasSequence
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.Sequence)
		pos += 4
	}

	if msg.Resource != 0 {
		flags |= hasResource
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.Resource)
		pos += 4
	}

	if msg.Code != 0 {
		flags |= hasCode
		result[pos] = msg.Code
		pos += 1
	}

	if msg.Body != nil {
		flags |= hasBody
		bodyLen := len(msg.Body)

		// Write body length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(bodyLen))
		pos += 4

		// Write body data
		copy(result[pos:pos+bodyLen], msg.Body)
		pos += bodyLen
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (Kind + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{Kind: common.MessageKind(data[0])}
	if msg.Kind == common.MsgKUnknown {
		return fmt.Errorf("frame without message kind")
	}
	flags := data[1]
	pos := 2

	// need checks that n more bytes are available
	need := func(n int, field string) error {
		if pos+n > len(data) {
			return fmt.Errorf("data too short for %s", field)
		}
		return nil
	}

	if flags&hasOpcode != 0 {
		if err := need(1, "opcode"); err != nil {
			return err
		}
		msg.Opcode = data[pos]
		pos += 1
	}

	if flags&hasMinor != 0 {
		if err := need(2, "minor opcode"); err != nil {
			return err
		}
		msg.Minor = binary.BigEndian.Uint16(data[pos : pos+2])
		pos += 2
	}

	if flags&hasFlags != 0 {
		if err := need(1, "request flags"); err != nil {
			return err
		}
		msg.Flags = data[pos]
		pos += 1
	}

	if flags&hasSequence != 0 {
		if err := need(4, "sequence"); err != nil {
			return err
		}
		msg.Sequence = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	if flags&hasResource != 0 {
		if err := need(4, "resource"); err != nil {
			return err
		}
		msg.Resource = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	if flags&hasCode != 0 {
		if err := need(1, "error code"); err != nil {
			return err
		}
		msg.Code = data[pos]
		pos += 1
	}

	if flags&hasBody != 0 {
		if err := need(4, "body length"); err != nil {
			return err
		}
		bodyLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if err := need(bodyLen, "body data"); err != nil {
			return err
		}

		// The body is copied, data may be a pooled read buffer
		msg.Body = make([]byte, bodyLen)
		copy(msg.Body, data[pos:pos+bodyLen])
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for Kind + 1 byte for flags
	size := 2

	if msg.Opcode != 0 {
		size += 1
	}
	if msg.Minor != 0 {
		size += 2
	}
	if msg.Flags != 0 {
		size += 1
	}
	if msg.Sequence != 0 {
		size += 4
	}
	if msg.Resource != 0 {
		size += 4
	}
	if msg.Code != 0 {
		size += 1
	}
	if msg.Body != nil {
		size += 4 + len(msg.Body) // 4 bytes for length + body bytes
	}

	return size
}
