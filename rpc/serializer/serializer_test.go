package serializer

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates one message of every kind the connection carries
func testMessages() []common.Message {
	return []common.Message{
		// Request without body
		{Kind: common.MsgKRequest, Opcode: uint8(common.OpNoOperation), Sequence: 1},

		// Checked void request
		{
			Kind:     common.MsgKRequest,
			Opcode:   uint8(common.OpMapWindow),
			Flags:    common.FlagChecked,
			Sequence: 2,
			Body:     common.EncodeWindow(0x00200001),
		},

		// Reply
		{
			Kind:     common.MsgKReply,
			Sequence: 0xfffffffe,
			Body:     common.Geometry{Root: common.Root, X: -4, Y: 7, Width: 640, Height: 480}.Encode(),
		},

		// Error with every header field set
		{
			Kind:     common.MsgKError,
			Opcode:   uint8(common.OpConfigureWindow),
			Minor:    3,
			Sequence: 42,
			Resource: 0x00200002,
			Code:     uint8(common.ErrMatch),
		},

		// Event
		{
			Kind:     common.MsgKEvent,
			Opcode:   uint8(common.EventMapNotify),
			Sequence: 9,
			Resource: 0x00200001,
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestBinaryDeserializeResetsMessage checks that stale fields of a reused message are cleared
func TestBinaryDeserializeResetsMessage(t *testing.T) {
	s := NewBinarySerializer()

	data, err := s.Serialize(common.Message{Kind: common.MsgKReply, Sequence: 5})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{Kind: common.MsgKError, Code: 3, Resource: 7, Body: []byte("stale")}
	if err := s.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	want := common.Message{Kind: common.MsgKReply, Sequence: 5}
	if !reflect.DeepEqual(msg, want) {
		t.Errorf("Expected %+v, got %+v", want, msg)
	}
}

// TestBinaryEmptyBody checks that an empty but non-nil body survives the round trip
func TestBinaryEmptyBody(t *testing.T) {
	s := NewBinarySerializer()

	data, err := s.Serialize(common.Message{Kind: common.MsgKReply, Sequence: 1, Body: []byte{}})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var result common.Message
	if err := s.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if result.Body == nil || len(result.Body) != 0 {
		t.Errorf("Expected empty non-nil body, got %#v", result.Body)
	}
}

// TestBinaryTruncated checks that every truncation of a valid frame is rejected
func TestBinaryTruncated(t *testing.T) {
	s := NewBinarySerializer()

	data, err := s.Serialize(testMessages()[1])
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	for n := 0; n < len(data); n++ {
		var result common.Message
		if err := s.Deserialize(data[:n], &result); err == nil {
			t.Errorf("Expected error for data truncated to %d of %d bytes", n, len(data))
		}
	}
}

// TestNew tests the serializer lookup by name
func TestNew(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		if _, err := New(name); err != nil {
			t.Errorf("Expected serializer %s, got error %v", name, err)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}
}

// TestRejectsFrameWithoutKind checks that a decoded frame must name its message kind
func TestRejectsFrameWithoutKind(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(common.Message{Sequence: 3})
			if err != nil {
				// a serializer may already refuse to write such a frame
				return
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err == nil {
				t.Errorf("Expected error for a frame without kind, got %+v", result)
			}
		})
	}
}
