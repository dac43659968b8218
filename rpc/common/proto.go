package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single packet on the display connection.
// Which fields are used depends on the kind of message.
type Message struct {
	// Kind of message
	Kind MessageKind `json:"kind"`

	// Header fields
	Opcode   uint8  `json:"opcode,omitempty"`   // Request: major opcode, Error: failed major opcode, Event: event code
	Minor    uint16 `json:"minor,omitempty"`    // Request/Error: minor opcode (extensions)
	Flags    uint8  `json:"flags,omitempty"`    // Request: FlagExpectsReply, FlagChecked. Error: FlagSynthetic
	Sequence uint32 `json:"sequence,omitempty"` // Low 32 bits of the request sequence
	Resource uint32 `json:"resource,omitempty"` // Error: bad resource id, Event: window
	Code     uint8  `json:"code,omitempty"`     // Error only: error code

	// Payload, opaque to the connection
	Body []byte `json:"body,omitempty"`
}

// Request flags
const (
	// FlagExpectsReply marks a request the server answers with a reply
	FlagExpectsReply uint8 = 1 << 0
	// FlagChecked marks a void request whose error is held for Check
	// instead of being delivered as an event
	FlagChecked uint8 = 1 << 1
	// FlagSynthetic marks an error re-injected into the event queue by the client itself
	FlagSynthetic uint8 = 1 << 2
)

// ExpectsReply returns true if the request is answered with a reply
func (m *Message) ExpectsReply() bool {
	return m.Flags&FlagExpectsReply != 0
}

// IsChecked returns true if the request was sent as a checked request
func (m *Message) IsChecked() bool {
	return m.Flags&FlagChecked != 0
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a new request. The sequence is stamped by the connection.
func NewRequest(opcode MajorCode, flags uint8, body []byte) *Message {
	return &Message{
		Kind:   MsgKRequest,
		Opcode: uint8(opcode),
		Flags:  flags,
		Body:   body,
	}
}

// NewReply creates a new reply for the request with the given sequence
func NewReply(sequence uint32, body []byte) *Message {
	return &Message{
		Kind:     MsgKReply,
		Sequence: sequence,
		Body:     body,
	}
}

// NewErrorMessage creates a new error for the given request
func NewErrorMessage(req *Message, code ErrorCode, resource uint32) *Message {
	return &Message{
		Kind:     MsgKError,
		Opcode:   req.Opcode,
		Minor:    req.Minor,
		Sequence: req.Sequence,
		Resource: resource,
		Code:     uint8(code),
	}
}

// NewEvent creates a new event stamped with the last processed sequence
func NewEvent(code EventCode, sequence uint32, window uint32, body []byte) *Message {
	return &Message{
		Kind:     MsgKEvent,
		Opcode:   uint8(code),
		Sequence: sequence,
		Resource: window,
		Body:     body,
	}
}

// --------------------------------------------------------------------------
// Message Kind Definition
// --------------------------------------------------------------------------

// MessageKind defines the kind of packet sent over a display connection.
type MessageKind uint8

const (
	MsgKUnknown MessageKind = iota
	MsgKRequest             // Client -> server
	MsgKReply               // Server -> client, answers one request
	MsgKError               // Server -> client, rejects one request
	MsgKEvent               // Server -> client, asynchronous notification
)

// String returns the string representation of a MessageKind.
func (k MessageKind) String() string {
	switch k {
	case MsgKRequest:
		return "request"
	case MsgKReply:
		return "reply"
	case MsgKError:
		return "error"
	case MsgKEvent:
		return "event"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageKind.
func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageKind.
func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "request":
		*k = MsgKRequest
	case "reply":
		*k = MsgKReply
	case "error":
		*k = MsgKError
	case "event":
		*k = MsgKEvent
	default:
		return fmt.Errorf("unknown message kind: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Event Codes
// --------------------------------------------------------------------------

// EventCode identifies an event. Code 0 is reserved for errors delivered
// through the event queue.
type EventCode uint8

const (
	EventError           EventCode = 0
	EventDestroyNotify   EventCode = 17
	EventUnmapNotify     EventCode = 18
	EventMapNotify       EventCode = 19
	EventConfigureNotify EventCode = 22
)

// String returns the name of the event code
func (c EventCode) String() string {
	switch c {
	case EventError:
		return "Error"
	case EventDestroyNotify:
		return "DestroyNotify"
	case EventUnmapNotify:
		return "UnmapNotify"
	case EventMapNotify:
		return "MapNotify"
	case EventConfigureNotify:
		return "ConfigureNotify"
	default:
		return fmt.Sprintf("Event(%d)", uint8(c))
	}
}

// Event masks selected with ChangeWindowAttributes
const (
	EventMaskStructureNotify uint32 = 1 << 17
)
