package trl

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
)

// Check blocks until the completion status of the checked request c is known.
// It returns nil if the request succeeded, the *common.GenericError if the
// server rejected it, or the wrapped connection error.
//
// Only requests sent with SendChecked (or any void request in strict mode)
// can be checked, and only once. For any other cookie ErrNoReply is returned.
// The error is returned, not dispatched.
func (d *Display) Check(c Cookie) error {
	if err := d.cookieUsable(c); err != nil {
		return err
	}

	errMsg, err := d.conn.ForceCheck(d.Widen(c).Sequence)
	if errors.Is(err, transport.ErrNotPending) {
		return ErrNoReply
	}
	if err != nil {
		return fmt.Errorf("checking request %d: %w", c.Sequence, err)
	}
	if errMsg == nil {
		return nil
	}
	return common.DecodeError(errMsg)
}

// SendChecked sends a void request whose error is held for Check instead of
// going to the event queue. The outcome stays pending until Check or Discard
// is called with the cookie, or the display is closed.
func (d *Display) SendChecked(opcode common.MajorCode, body []byte) Cookie {
	d.mustBeOpen()
	seq := d.conn.SendRequest(common.NewRequest(opcode, common.FlagChecked, body))
	d.metrics.voidRequests.Inc()
	return Cookie{Sequence: uint32(seq)}
}

// checkStrict validates a void request sent in strict mode. An error is logged,
// put back into the event queue as a synthetic event so the event loop still
// sees it, and then the breakpoint hook is called.
func (d *Display) checkStrict(c Cookie) {
	err := d.Check(c)
	if err == nil {
		return
	}

	gerr, ok := err.(*common.GenericError)
	if !ok {
		Logger.Errorf("Strict check of request %d failed: %v", c.Sequence, err)
		return
	}

	d.metrics.errChecked.Inc()
	Logger.Errorf("Checked request failed: %s", gerr.Describe())

	d.conn.QueueEvent(&common.Message{
		Kind:     common.MsgKError,
		Opcode:   uint8(gerr.MajorCode),
		Minor:    gerr.MinorCode,
		Flags:    common.FlagSynthetic,
		Sequence: gerr.FullSequence,
		Resource: gerr.ResourceID,
		Code:     uint8(gerr.ErrorCode),
	})

	d.breakpoint()
}
