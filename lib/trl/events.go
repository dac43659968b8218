package trl

import "github.com/ValentinKolb/xtrl/rpc/common"

// Event is a message from the event queue. Errors of unchecked requests and
// errors re-injected by strict mode arrive as events with Code EventError and
// Err set.
type Event struct {
	Code      common.EventCode
	Sequence  uint32
	Window    uint32
	Body      []byte
	Err       *common.GenericError
	Synthetic bool // re-injected locally after a strict mode check
}

func newEvent(msg *common.Message) *Event {
	if msg.Kind == common.MsgKError {
		return &Event{
			Code:      common.EventError,
			Sequence:  msg.Sequence,
			Window:    msg.Resource,
			Err:       common.DecodeError(msg),
			Synthetic: msg.Flags&common.FlagSynthetic != 0,
		}
	}
	return &Event{
		Code:     common.EventCode(msg.Opcode),
		Sequence: msg.Sequence,
		Window:   msg.Resource,
		Body:     msg.Body,
	}
}

// PollForEvent returns the next queued event or nil
func (d *Display) PollForEvent() *Event {
	d.mustBeOpen()
	msg := d.conn.PollForEvent()
	if msg == nil {
		return nil
	}
	return newEvent(msg)
}

// WaitForEvent blocks until an event arrives or the connection fails
func (d *Display) WaitForEvent() (*Event, error) {
	d.mustBeOpen()
	msg, err := d.conn.WaitForEvent()
	if err != nil {
		return nil, err
	}
	return newEvent(msg), nil
}

// HandleEvent dispatches the error of an event that was not already reported
// by strict mode. It returns true if the event carried an error.
func (d *Display) HandleEvent(ev *Event) bool {
	if ev.Err == nil {
		return false
	}
	if !ev.Synthetic {
		d.Dispatch(ev.Err)
	}
	return true
}
