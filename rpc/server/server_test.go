package server

import (
	"bytes"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"reflect"
	"strings"
	"testing"
)

const (
	winA uint32 = 0x00200001
	winB uint32 = 0x00200002
	winC uint32 = 0x00200003
)

// testServer wraps a server without transport and stamps sequences like a connection
type testServer struct {
	t   *testing.T
	s   *DisplayServer
	seq uint32
}

func newTestServer(t *testing.T) *testServer {
	return &testServer{t: t, s: newDisplayServer(common.ServerConfig{}, nil)}
}

func (ts *testServer) send(client uint64, opcode common.MajorCode, flags uint8, body []byte) []*common.Message {
	ts.seq++
	req := common.NewRequest(opcode, flags, body)
	req.Sequence = ts.seq
	return ts.s.Handle(client, req)
}

func (ts *testServer) create(client uint64, window, parent uint32) {
	ts.t.Helper()
	body := common.CreateWindowBody{Window: window, Parent: parent, Width: 100, Height: 50}
	if out := ts.send(client, common.OpCreateWindow, 0, body.Encode()); len(out) != 0 {
		ts.t.Fatalf("CreateWindow 0x%x: unexpected answer %+v", window, out[0])
	}
}

func (ts *testServer) selectInput(client uint64, window uint32) {
	ts.t.Helper()
	out := ts.send(client, common.OpChangeWindowAttributes, 0, common.EncodeWindowValue(window, common.EventMaskStructureNotify))
	if len(out) != 0 {
		ts.t.Fatalf("ChangeWindowAttributes 0x%x: unexpected answer %+v", window, out[0])
	}
}

func (ts *testServer) configure(client uint64, window uint32, mask uint16, values ...uint32) []*common.Message {
	body := common.ConfigureWindowBody{Window: window, Mask: mask, Values: values}
	return ts.send(client, common.OpConfigureWindow, 0, body.Encode())
}

func expectError(t *testing.T, out []*common.Message, code common.ErrorCode, opcode common.MajorCode) *common.Message {
	t.Helper()
	if len(out) != 1 || out[0].Kind != common.MsgKError {
		t.Fatalf("Expected a single error, got %+v", out)
	}
	if common.ErrorCode(out[0].Code) != code {
		t.Errorf("Expected %s, got %s", code, common.ErrorCode(out[0].Code))
	}
	if common.MajorCode(out[0].Opcode) != opcode {
		t.Errorf("Expected major code %s, got %s", opcode, common.MajorCode(out[0].Opcode))
	}
	return out[0]
}

func expectReply(t *testing.T, out []*common.Message) *common.Message {
	t.Helper()
	if len(out) == 0 || out[0].Kind != common.MsgKReply {
		t.Fatalf("Expected a reply, got %+v", out)
	}
	return out[0]
}

func TestCreateWindowAndGetGeometry(t *testing.T) {
	ts := newTestServer(t)

	body := common.CreateWindowBody{Window: winA, Parent: common.Root, X: -5, Y: 7, Width: 640, Height: 480, BorderWidth: 2}
	if out := ts.send(1, common.OpCreateWindow, 0, body.Encode()); len(out) != 0 {
		t.Fatalf("Expected no answer, got %+v", out)
	}

	r := expectReply(t, ts.send(1, common.OpGetGeometry, common.FlagExpectsReply, common.EncodeWindow(winA)))
	if r.Sequence != ts.seq {
		t.Errorf("Expected reply sequence %d, got %d", ts.seq, r.Sequence)
	}

	var g common.Geometry
	if err := g.Decode(r.Body); err != nil {
		t.Fatalf("Failed to decode geometry: %v", err)
	}
	expected := common.Geometry{Root: common.Root, X: -5, Y: 7, Width: 640, Height: 480, BorderWidth: 2}
	if !reflect.DeepEqual(g, expected) {
		t.Errorf("Expected %+v, got %+v", expected, g)
	}

	if ts.s.State().WindowCount() != 2 {
		t.Errorf("Expected 2 windows, got %d", ts.s.State().WindowCount())
	}
}

func TestCreateWindowErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)

	tests := []struct {
		name     string
		body     []byte
		code     common.ErrorCode
		resource uint32
	}{
		{"unknown parent", common.CreateWindowBody{Window: winB, Parent: 0x999, Width: 1, Height: 1}.Encode(), common.ErrWindow, 0x999},
		{"duplicate id", common.CreateWindowBody{Window: winA, Parent: common.Root, Width: 1, Height: 1}.Encode(), common.ErrIDChoice, winA},
		{"zero id", common.CreateWindowBody{Window: 0, Parent: common.Root, Width: 1, Height: 1}.Encode(), common.ErrIDChoice, 0},
		{"zero width", common.CreateWindowBody{Window: winB, Parent: common.Root, Width: 0, Height: 1}.Encode(), common.ErrValue, 0},
		{"short body", []byte{1, 2, 3}, common.ErrLength, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := expectError(t, ts.send(1, common.OpCreateWindow, 0, tt.body), tt.code, common.OpCreateWindow)
			if msg.Resource != tt.resource {
				t.Errorf("Expected resource 0x%x, got 0x%x", tt.resource, msg.Resource)
			}
		})
	}

	if ts.s.State().WindowCount() != 2 {
		t.Errorf("Failed requests must not change the tree, got %d windows", ts.s.State().WindowCount())
	}
}

func TestConfigureSiblingWithoutStackMode(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.create(1, winB, common.Root)

	msg := expectError(t, ts.configure(1, winA, common.ConfigSibling, winB), common.ErrMatch, common.OpConfigureWindow)
	if msg.Sequence != ts.seq {
		t.Errorf("Expected error sequence %d, got %d", ts.seq, msg.Sequence)
	}

	e := common.DecodeError(msg)
	if e.ErrorCode.String() != "BadMatch" || e.MajorCode.String() != "ConfigureWindow" {
		t.Errorf("Unexpected names %s / %s", e.ErrorCode, e.MajorCode)
	}
}

func TestConfigureWindowValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.create(1, winB, winA)

	tests := []struct {
		name   string
		mask   uint16
		values []uint32
		code   common.ErrorCode
	}{
		{"unknown mask bit", 1 << 9, []uint32{1}, common.ErrValue},
		{"value count", common.ConfigX | common.ConfigY, []uint32{1}, common.ErrLength},
		{"zero height", common.ConfigHeight, []uint32{0}, common.ErrValue},
		{"stack mode out of range", common.ConfigStackMode, []uint32{4}, common.ErrValue},
		{"unknown sibling", common.ConfigSibling | common.ConfigStackMode, []uint32{0x999, common.StackAbove}, common.ErrWindow},
		{"sibling of other parent", common.ConfigSibling | common.ConfigStackMode, []uint32{winB, common.StackAbove}, common.ErrMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.configure(1, winA, tt.mask, tt.values...), tt.code, common.OpConfigureWindow)
		})
	}
}

func TestConfigureWindowRestack(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.create(1, winB, common.Root)
	ts.create(1, winC, common.Root)
	ts.selectInput(1, winA)

	children := func() []uint32 {
		root, _ := ts.s.State().lookup(common.Root)
		return append([]uint32(nil), root.children...)
	}

	// raise
	out := ts.configure(1, winA, common.ConfigStackMode, common.StackAbove)
	if len(out) != 1 || out[0].Kind != common.MsgKEvent || common.EventCode(out[0].Opcode) != common.EventConfigureNotify {
		t.Fatalf("Expected a ConfigureNotify, got %+v", out)
	}
	var n common.ConfigureNotify
	if err := n.Decode(out[0].Body); err != nil {
		t.Fatalf("Failed to decode ConfigureNotify: %v", err)
	}
	if n.AboveSibling != winC {
		t.Errorf("Expected above sibling 0x%x, got 0x%x", winC, n.AboveSibling)
	}
	if got := children(); !reflect.DeepEqual(got, []uint32{winB, winC, winA}) {
		t.Errorf("Unexpected stacking order after raise: %x", got)
	}

	// below a given sibling
	ts.configure(1, winA, common.ConfigSibling|common.ConfigStackMode, winB, common.StackBelow)
	if got := children(); !reflect.DeepEqual(got, []uint32{winA, winB, winC}) {
		t.Errorf("Unexpected stacking order after restack: %x", got)
	}

	// lower a window that did not select events, no notification
	if out := ts.configure(1, winC, common.ConfigStackMode, common.StackBelow); len(out) != 0 {
		t.Errorf("Expected no events, got %+v", out)
	}
	if got := children(); !reflect.DeepEqual(got, []uint32{winC, winA, winB}) {
		t.Errorf("Unexpected stacking order after lower: %x", got)
	}
}

func TestMapNotifyOnlyWhenSelected(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)

	if out := ts.send(1, common.OpMapWindow, 0, common.EncodeWindow(winA)); len(out) != 0 {
		t.Errorf("Expected no events without selection, got %+v", out)
	}
	ts.send(1, common.OpUnmapWindow, 0, common.EncodeWindow(winA))

	ts.selectInput(1, winA)

	// another client sees nothing
	if out := ts.send(2, common.OpMapWindow, 0, common.EncodeWindow(winA)); len(out) != 0 {
		t.Errorf("Expected no events for client 2, got %+v", out)
	}
	out := ts.send(1, common.OpUnmapWindow, 0, common.EncodeWindow(winA))
	if len(out) != 1 || common.EventCode(out[0].Opcode) != common.EventUnmapNotify {
		t.Fatalf("Expected UnmapNotify, got %+v", out)
	}
	if out[0].Sequence != ts.seq || out[0].Resource != winA {
		t.Errorf("Unexpected event stamp: sequence %d, window 0x%x", out[0].Sequence, out[0].Resource)
	}

	r := expectReply(t, ts.send(1, common.OpGetWindowAttributes, common.FlagExpectsReply, common.EncodeWindow(winA)))
	var attrs common.WindowAttributes
	if err := attrs.Decode(r.Body); err != nil {
		t.Fatalf("Failed to decode attributes: %v", err)
	}
	if attrs.MapState != common.MapStateUnmapped || attrs.EventMask != common.EventMaskStructureNotify {
		t.Errorf("Unexpected attributes %+v", attrs)
	}
}

func TestDestroyWindowSubtree(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.create(1, winB, winA)
	ts.selectInput(1, winA)
	ts.selectInput(1, winB)

	out := ts.send(1, common.OpDestroyWindow, 0, common.EncodeWindow(winA))
	if len(out) != 2 {
		t.Fatalf("Expected 2 DestroyNotify events, got %d", len(out))
	}
	if out[0].Resource != winB || out[1].Resource != winA {
		t.Errorf("Expected children first, got 0x%x then 0x%x", out[0].Resource, out[1].Resource)
	}
	if ts.s.State().WindowCount() != 1 {
		t.Errorf("Expected only the root left, got %d windows", ts.s.State().WindowCount())
	}

	expectError(t, ts.send(1, common.OpGetGeometry, common.FlagExpectsReply, common.EncodeWindow(winB)), common.ErrWindow, common.OpGetGeometry)

	// the root survives
	if out := ts.send(1, common.OpDestroyWindow, 0, common.EncodeWindow(common.Root)); len(out) != 0 {
		t.Errorf("Expected no answer for the root, got %+v", out)
	}
	if ts.s.State().WindowCount() != 1 {
		t.Errorf("Root must not be destroyed")
	}
}

func TestInternAtom(t *testing.T) {
	ts := newTestServer(t)

	intern := func(onlyIfExists bool, name string) uint32 {
		t.Helper()
		r := expectReply(t, ts.send(1, common.OpInternAtom, common.FlagExpectsReply, common.InternAtomBody{OnlyIfExists: onlyIfExists, Name: name}.Encode()))
		atom, err := common.DecodeUint32(r.Body)
		if err != nil {
			t.Fatalf("Failed to decode atom: %v", err)
		}
		return atom
	}

	if atom := intern(true, "WM_NAME"); atom != 39 {
		t.Errorf("Expected predefined atom 39, got %d", atom)
	}
	if atom := intern(true, "_NET_WM_NAME"); atom != 0 {
		t.Errorf("Expected None for unknown name, got %d", atom)
	}

	first := intern(false, "_NET_WM_NAME")
	if first < firstFreeAtom {
		t.Errorf("Expected a new atom >= %d, got %d", firstFreeAtom, first)
	}
	if again := intern(true, "_NET_WM_NAME"); again != first {
		t.Errorf("Expected the same atom %d, got %d", first, again)
	}
	if other := intern(false, "UTF8_STRING"); other == first {
		t.Errorf("Different names must get different atoms")
	}

	expectError(t, ts.send(1, common.OpInternAtom, common.FlagExpectsReply, common.InternAtomBody{Name: ""}.Encode()), common.ErrValue, common.OpInternAtom)
}

func TestUnknownAndUnimplementedRequests(t *testing.T) {
	ts := newTestServer(t)

	expectError(t, ts.send(1, common.MajorCode(200), 0, nil), common.ErrRequest, common.MajorCode(200))
	expectError(t, ts.send(1, common.MajorCode(15), common.FlagExpectsReply, nil), common.ErrImplementation, common.MajorCode(15))
}

func TestReplyForRequestWithoutBody(t *testing.T) {
	ts := newTestServer(t)

	// NoOperation never has a reply body, but a reply is still owed
	r := expectReply(t, ts.send(1, common.OpNoOperation, common.FlagExpectsReply, nil))
	if r.Body == nil || len(r.Body) != 0 {
		t.Errorf("Expected an empty reply body, got %v", r.Body)
	}

	r = expectReply(t, ts.send(1, common.OpGetInputFocus, common.FlagExpectsReply, nil))
	if focus, _ := common.DecodeUint32(r.Body); focus != common.Root {
		t.Errorf("Expected focus on the root, got 0x%x", focus)
	}
}

func TestKillClient(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.create(1, winB, winA)
	ts.create(2, winC, common.Root)

	expectError(t, ts.send(2, common.OpKillClient, 0, common.EncodeUint32(0x999)), common.ErrValue, common.OpKillClient)
	expectError(t, ts.send(2, common.OpKillClient, 0, common.EncodeUint32(common.Root)), common.ErrValue, common.OpKillClient)

	if out := ts.send(2, common.OpKillClient, 0, common.EncodeUint32(winB)); len(out) != 0 {
		t.Errorf("Expected no answer, got %+v", out)
	}
	if ts.s.State().WindowCount() != 2 {
		t.Errorf("Expected root and 0x%x left, got %d windows", winC, ts.s.State().WindowCount())
	}
	if _, found := ts.s.State().lookup(winC); !found {
		t.Errorf("Window of the killing client must survive")
	}
}

func TestDisconnectReleasesWindows(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.create(1, winB, winA)
	ts.create(2, winC, common.Root)

	ts.s.Disconnect(1)

	if ts.s.State().WindowCount() != 2 {
		t.Errorf("Expected 2 windows, got %d", ts.s.State().WindowCount())
	}
	root, _ := ts.s.State().lookup(common.Root)
	if !reflect.DeepEqual(root.children, []uint32{winC}) {
		t.Errorf("Expected root children [0x%x], got %x", winC, root.children)
	}
}

func TestServerMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.create(1, winA, common.Root)
	ts.send(1, common.OpMapWindow, 0, common.EncodeWindow(winA))
	ts.send(1, common.OpMapWindow, 0, common.EncodeWindow(0x999))

	if n := ts.s.RequestCount(common.OpMapWindow); n != 2 {
		t.Errorf("Expected 2 MapWindow requests, got %d", n)
	}
	if n := ts.s.ErrorCount(common.ErrWindow); n != 1 {
		t.Errorf("Expected 1 BadWindow, got %d", n)
	}

	var buf bytes.Buffer
	ts.s.WriteMetrics(&buf)
	for _, name := range []string{"requests.MapWindow", "requests.CreateWindow", "errors.BadWindow", "handle"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("Expected %q in metrics output:\n%s", name, buf.String())
		}
	}
}
