package base

import (
	"bytes"
	"errors"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"net"
	"testing"
	"time"
)

// testHandler answers a small subset of the protocol:
//   - GetInputFocus: reply
//   - GetGeometry: reply echoing the body, error BadWindow for window 0
//   - MapWindow: error BadWindow for window 0, MapNotify event otherwise
//   - GetWindowAttributes: waits for gate to be closed, then replies
func testHandler(gate chan struct{}) transport.ServerHandleFunc {
	return func(client uint64, req *common.Message) []*common.Message {
		switch common.MajorCode(req.Opcode) {
		case common.OpGetInputFocus:
			return []*common.Message{common.NewReply(req.Sequence, common.EncodeUint32(common.Root))}
		case common.OpGetGeometry:
			window, _ := common.DecodeWindow(req.Body)
			if window == 0 {
				return []*common.Message{common.NewErrorMessage(req, common.ErrWindow, window)}
			}
			return []*common.Message{common.NewReply(req.Sequence, req.Body)}
		case common.OpMapWindow:
			window, _ := common.DecodeWindow(req.Body)
			if window == 0 {
				return []*common.Message{common.NewErrorMessage(req, common.ErrWindow, window)}
			}
			return []*common.Message{common.NewEvent(common.EventMapNotify, req.Sequence, window, nil)}
		case common.OpGetWindowAttributes:
			<-gate
			return []*common.Message{common.NewReply(req.Sequence, []byte{1})}
		}
		return nil
	}
}

// newTestPair connects a client connection to a server transport over net.Pipe
func newTestPair(t *testing.T, handler transport.ServerHandleFunc) (*clientConnection, net.Conn) {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()

	srv := NewBaseServerTransport(nil, 0)
	srv.RegisterHandler(handler)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.ServeConn(serverEnd, common.ServerConfig{})
	}()

	conn, err := NewConnectionFromConn(clientEnd, common.ClientConfig{})
	if err != nil {
		t.Fatalf("Failed to create connection: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		serverEnd.Close()
		<-done
	})

	return conn.(*clientConnection), serverEnd
}

func geometryRequest(window uint32) *common.Message {
	return common.NewRequest(common.OpGetGeometry, common.FlagExpectsReply, common.EncodeWindow(window))
}

func TestSequencesIncrease(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	for i := uint64(1); i <= 3; i++ {
		seq := c.SendRequest(common.NewRequest(common.OpNoOperation, 0, nil))
		if seq != i {
			t.Errorf("Expected sequence %d, got %d", i, seq)
		}
	}
	if c.CurrentSequence() != 3 {
		t.Errorf("Expected current sequence 3, got %d", c.CurrentSequence())
	}
}

func TestWaitForReply(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	seq := c.SendRequest(geometryRequest(0x00200001))
	reply, errMsg, err := c.WaitForReply(seq)
	if err != nil || errMsg != nil {
		t.Fatalf("Unexpected failure: %v %v", err, errMsg)
	}
	if !bytes.Equal(reply.Body, common.EncodeWindow(0x00200001)) {
		t.Errorf("Unexpected reply body %v", reply.Body)
	}
	if reply.Sequence != uint32(seq) {
		t.Errorf("Expected reply sequence %d, got %d", seq, reply.Sequence)
	}

	// consumed
	reply, errMsg, err = c.WaitForReply(seq)
	if reply != nil || errMsg != nil || err != nil {
		t.Errorf("Expected nothing for consumed sequence, got %v %v %v", reply, errMsg, err)
	}
}

func TestWaitForReplyError(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	seq := c.SendRequest(geometryRequest(0))
	reply, errMsg, err := c.WaitForReply(seq)
	if err != nil || reply != nil {
		t.Fatalf("Expected error message only, got %v %v", reply, err)
	}
	if common.ErrorCode(errMsg.Code) != common.ErrWindow || common.MajorCode(errMsg.Opcode) != common.OpGetGeometry {
		t.Errorf("Unexpected error message %+v", errMsg)
	}
}

func TestPollForReplyBeforeArrival(t *testing.T) {
	gate := make(chan struct{})
	c, _ := newTestPair(t, testHandler(gate))
	defer func() {
		select {
		case <-gate:
		default:
			close(gate)
		}
	}()

	seq := c.SendRequest(common.NewRequest(common.OpGetWindowAttributes, common.FlagExpectsReply, common.EncodeWindow(1)))

	if _, _, done := c.PollForReply(seq); done {
		t.Fatalf("Reply should not have arrived yet")
	}

	close(gate)

	deadline := time.Now().Add(2 * time.Second)
	for {
		reply, errMsg, done := c.PollForReply(seq)
		if done {
			if reply == nil || errMsg != nil {
				t.Errorf("Expected reply, got %v %v", reply, errMsg)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timeout polling for reply")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestUncheckedErrorGoesToEventQueue(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	voidSeq := c.SendRequest(common.NewRequest(common.OpMapWindow, 0, common.EncodeWindow(0)))
	seq := c.SendRequest(common.NewRequest(common.OpGetInputFocus, common.FlagExpectsReply, nil))
	if _, _, err := c.WaitForReply(seq); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ev := c.PollForEvent()
	if ev == nil {
		t.Fatal("Expected error in event queue")
	}
	if ev.Kind != common.MsgKError || uint64(ev.Sequence) != voidSeq {
		t.Errorf("Unexpected event %+v", ev)
	}
	if c.PollForEvent() != nil {
		t.Errorf("Expected empty event queue")
	}
}

func TestForceCheck(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	t.Run("Error", func(t *testing.T) {
		seq := c.SendRequest(common.NewRequest(common.OpMapWindow, common.FlagChecked, common.EncodeWindow(0)))
		errMsg, err := c.ForceCheck(seq)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if errMsg == nil || common.ErrorCode(errMsg.Code) != common.ErrWindow {
			t.Fatalf("Expected BadWindow, got %+v", errMsg)
		}
		if ev := c.PollForEvent(); ev != nil {
			t.Errorf("Checked error must not reach the event queue, got %+v", ev)
		}
	})

	t.Run("Success", func(t *testing.T) {
		seq := c.SendRequest(common.NewRequest(common.OpMapWindow, common.FlagChecked, common.EncodeWindow(7)))
		errMsg, err := c.ForceCheck(seq)
		if err != nil || errMsg != nil {
			t.Fatalf("Expected success, got %v %v", errMsg, err)
		}

		ev, err := c.WaitForEvent()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if common.EventCode(ev.Opcode) != common.EventMapNotify || ev.Resource != 7 {
			t.Errorf("Expected MapNotify for window 7, got %+v", ev)
		}
	})

	t.Run("NoOperation", func(t *testing.T) {
		// no answer at all, the sync request proves completion
		seq := c.SendRequest(common.NewRequest(common.OpNoOperation, common.FlagChecked, nil))
		errMsg, err := c.ForceCheck(seq)
		if err != nil || errMsg != nil {
			t.Fatalf("Expected success, got %v %v", errMsg, err)
		}
		if seq+1 != c.CurrentSequence() {
			t.Errorf("Expected one sync request, current sequence %d", c.CurrentSequence())
		}
	})
}

func TestOutOfOrderRetrieval(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	failed := c.SendRequest(geometryRequest(0))
	earlier := c.SendRequest(geometryRequest(5))
	later := c.SendRequest(geometryRequest(5))

	if reply, _, err := c.WaitForReply(later); err != nil || reply == nil {
		t.Fatalf("Expected reply, got %v %v", reply, err)
	}

	// earlier entries stay pending until they are retrieved
	if reply, errMsg, done := c.PollForReply(earlier); !done || reply == nil || errMsg != nil {
		t.Errorf("Expected the earlier reply, got %v %v %v", reply, errMsg, done)
	}
	reply, errMsg, err := c.WaitForReply(failed)
	if err != nil || reply != nil || errMsg == nil || uint64(errMsg.Sequence) != failed {
		t.Errorf("Expected the earlier error, got %v %v %v", reply, errMsg, err)
	}

	if ev := c.PollForEvent(); ev != nil {
		t.Errorf("Expected empty event queue, got %+v", ev)
	}

	// each entry is handed out once
	if reply, errMsg, done := c.PollForReply(earlier); !done || reply != nil || errMsg != nil {
		t.Errorf("Expected nothing on second retrieval, got %v %v %v", reply, errMsg, done)
	}
}

func TestForceCheckKeepsPendingReplies(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	pending := c.SendRequest(geometryRequest(5))
	checked := c.SendRequest(common.NewRequest(common.OpNoOperation, common.FlagChecked, nil))

	if errMsg, err := c.ForceCheck(checked); err != nil || errMsg != nil {
		t.Fatalf("Expected success, got %v %v", errMsg, err)
	}

	reply, _, err := c.WaitForReply(pending)
	if err != nil || reply == nil {
		t.Errorf("Expected the reply sent before the check, got %v %v", reply, err)
	}
}

func TestForceCheckNotPending(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	// an unchecked void request is not tracked, its error goes to the event queue
	unchecked := c.SendRequest(common.NewRequest(common.OpMapWindow, 0, common.EncodeWindow(0)))
	if _, err := c.ForceCheck(unchecked); !errors.Is(err, transport.ErrNotPending) {
		t.Errorf("Expected ErrNotPending for an unchecked request, got %v", err)
	}

	checked := c.SendRequest(common.NewRequest(common.OpMapWindow, common.FlagChecked, common.EncodeWindow(0)))
	if errMsg, err := c.ForceCheck(checked); err != nil || errMsg == nil {
		t.Fatalf("Expected BadWindow, got %v %v", errMsg, err)
	}
	if errMsg, err := c.ForceCheck(checked); errMsg != nil || !errors.Is(err, transport.ErrNotPending) {
		t.Errorf("Expected ErrNotPending on second check, got %v %v", errMsg, err)
	}

	c.Close()
	if _, err := c.ForceCheck(checked); !errors.Is(err, transport.ErrConnClosed) {
		t.Errorf("Expected ErrConnClosed after close, got %v", err)
	}
}

func TestDiscard(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	seq := c.SendRequest(geometryRequest(0))
	c.Discard(seq)

	reply, errMsg, err := c.WaitForReply(seq)
	if reply != nil || errMsg != nil || err != nil {
		t.Errorf("Expected nothing for discarded sequence, got %v %v %v", reply, errMsg, err)
	}

	// the error of a discarded request is freed, not queued
	syncSeq := c.SendRequest(common.NewRequest(common.OpGetInputFocus, common.FlagExpectsReply, nil))
	if _, _, err := c.WaitForReply(syncSeq); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ev := c.PollForEvent(); ev != nil {
		t.Errorf("Expected empty event queue, got %+v", ev)
	}
}

func TestSkipsZeroSequence(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	c.lastRequest.Store(common.Epoch - 1)

	seq := c.SendRequest(geometryRequest(3))
	if seq != common.Epoch+1 {
		t.Fatalf("Expected sequence %d, got %d", common.Epoch+1, seq)
	}

	reply, _, err := c.WaitForReply(seq)
	if err != nil || reply == nil {
		t.Fatalf("Expected reply across the wrap, got %v %v", reply, err)
	}
}

func TestClose(t *testing.T) {
	c, _ := newTestPair(t, testHandler(nil))

	if err := c.Close(); err != nil {
		t.Fatalf("Unexpected close error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	if !errors.Is(c.Err(), transport.ErrConnClosed) {
		t.Errorf("Expected ErrConnClosed, got %v", c.Err())
	}
	if seq := c.SendRequest(common.NewRequest(common.OpNoOperation, 0, nil)); seq != 0 {
		t.Errorf("Expected sequence 0 on closed connection, got %d", seq)
	}
	if _, err := c.WaitForEvent(); !errors.Is(err, transport.ErrConnClosed) {
		t.Errorf("Expected ErrConnClosed from WaitForEvent, got %v", err)
	}
}

func TestConnectionLost(t *testing.T) {
	gate := make(chan struct{})
	c, serverEnd := newTestPair(t, testHandler(gate))
	defer close(gate)

	seq := c.SendRequest(common.NewRequest(common.OpGetWindowAttributes, common.FlagExpectsReply, common.EncodeWindow(1)))
	if err := c.Flush(); err != nil {
		t.Fatalf("Unexpected flush error: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		_, _, err := c.WaitForReply(seq)
		result <- err
	}()

	serverEnd.Close()

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("Expected connection error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForReply did not return after the connection was lost")
	}

	if !c.HasError() {
		t.Errorf("Expected HasError after connection loss")
	}
	if seq := c.SendRequest(common.NewRequest(common.OpNoOperation, 0, nil)); seq != 0 {
		t.Errorf("Expected sequence 0 on broken connection, got %d", seq)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{{}, []byte("a"), bytes.Repeat([]byte{7}, 5000)}

	for _, p := range payloads {
		if err := writeFrame(&buf, p); err != nil {
			t.Fatalf("Failed to write frame: %v", err)
		}
	}

	for i, p := range payloads {
		got, err := readFrame(&buf, make([]byte, 16))
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if !bytes.Equal(got, p) {
			t.Errorf("Frame %d mismatch: got %d bytes, expected %d", i, len(got), len(p))
		}
	}
}

func TestFrameTooLarge(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := readFrame(buf, nil); err == nil {
		t.Errorf("Expected error for oversized frame")
	}
}
