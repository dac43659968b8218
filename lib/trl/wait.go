package trl

import (
	"code.hybscloud.com/iox"
	"context"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"time"
)

// WaitReply blocks until the reply or error of c arrived. The reply body is
// returned and owned by the caller.
//
// An error reply is passed to the error dispatcher and ErrRequestFailed is
// returned. ErrNoReply is returned if nothing will arrive for c. If the
// connection fails the wrapped connection error is returned.
func (d *Display) WaitReply(c Cookie) ([]byte, error) {
	if err := d.cookieUsable(c); err != nil {
		return nil, err
	}

	start := time.Now()
	defer d.metrics.waitDuration.UpdateDuration(start)

	reply, errMsg, err := d.conn.WaitForReply(d.Widen(c).Sequence)
	if err != nil {
		return nil, fmt.Errorf("waiting for reply %d: %w", c.Sequence, err)
	}
	return d.complete(reply, errMsg)
}

// PollReply is the non blocking variant of WaitReply. It returns
// iox.ErrWouldBlock if the outcome of c has not arrived yet, otherwise it
// behaves like WaitReply.
func (d *Display) PollReply(c Cookie) ([]byte, error) {
	if err := d.cookieUsable(c); err != nil {
		return nil, err
	}

	reply, errMsg, done := d.conn.PollForReply(d.Widen(c).Sequence)
	if !done {
		return nil, iox.ErrWouldBlock
	}
	return d.complete(reply, errMsg)
}

// WaitReplyContext waits like WaitReply but gives up when ctx is done. It polls
// with adaptive backoff. On cancellation the cookie stays pending and can be
// waited for again or discarded.
func (d *Display) WaitReplyContext(ctx context.Context, c Cookie) ([]byte, error) {
	var bo iox.Backoff
	for {
		body, err := d.PollReply(c)
		if !iox.IsWouldBlock(err) {
			return body, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		bo.Wait()
	}
}

// Discard drops the pending reply of c, or the pending status of a checked
// request that will not be checked. Whatever arrives for it is freed and
// errors are not dispatched.
func (d *Display) Discard(c Cookie) {
	d.mustBeOpen()
	if c.IsZero() {
		return
	}
	d.conn.Discard(d.Widen(c).Sequence)
}

// complete turns the outcome of a retrieval into the uniform return contract
func (d *Display) complete(reply, errMsg *common.Message) ([]byte, error) {
	if errMsg != nil {
		d.Dispatch(common.DecodeError(errMsg))
		return nil, ErrRequestFailed
	}
	if reply == nil {
		if err := d.conn.Err(); err != nil {
			return nil, fmt.Errorf("connection failed: %w", err)
		}
		return nil, ErrNoReply
	}

	d.metrics.replies.Inc()
	if reply.Body == nil {
		return []byte{}, nil
	}
	return reply.Body, nil
}

// --------------------------------------------------------------------------
// Typed replies
// --------------------------------------------------------------------------

// GetGeometryReply waits for the reply of a GetGeometry request
func (d *Display) GetGeometryReply(c Cookie) (*common.Geometry, error) {
	body, err := d.WaitReply(c)
	if err != nil {
		return nil, err
	}
	g := &common.Geometry{}
	if err := g.Decode(body); err != nil {
		return nil, fmt.Errorf("malformed GetGeometry reply: %w", err)
	}
	return g, nil
}

// GetWindowAttributesReply waits for the reply of a GetWindowAttributes request
func (d *Display) GetWindowAttributesReply(c Cookie) (*common.WindowAttributes, error) {
	body, err := d.WaitReply(c)
	if err != nil {
		return nil, err
	}
	a := &common.WindowAttributes{}
	if err := a.Decode(body); err != nil {
		return nil, fmt.Errorf("malformed GetWindowAttributes reply: %w", err)
	}
	return a, nil
}

// InternAtomReply waits for the reply of an InternAtom request. The atom is 0
// if onlyIfExists was set and the name is unknown.
func (d *Display) InternAtomReply(c Cookie) (uint32, error) {
	body, err := d.WaitReply(c)
	if err != nil {
		return 0, err
	}
	atom, err := common.DecodeUint32(body)
	if err != nil {
		return 0, fmt.Errorf("malformed InternAtom reply: %w", err)
	}
	return atom, nil
}

// GetInputFocusReply waits for the reply of a GetInputFocus request
func (d *Display) GetInputFocusReply(c Cookie) (uint32, error) {
	body, err := d.WaitReply(c)
	if err != nil {
		return 0, err
	}
	focus, err := common.DecodeUint32(body)
	if err != nil {
		return 0, fmt.Errorf("malformed GetInputFocus reply: %w", err)
	}
	return focus, nil
}

// Sync sends a GetInputFocus request and waits for its reply, so every earlier
// request has been processed by the server once it returns
func (d *Display) Sync() error {
	_, err := d.WaitReply(d.GetInputFocus())
	return err
}
