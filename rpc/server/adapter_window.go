package server

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// NewWindowAdapter creates the adapter for window lifecycle, attribute and
// configuration requests
func NewWindowAdapter() IRequestAdapter {
	return &windowAdapterImpl{}
}

type windowAdapterImpl struct{}

func (adapter *windowAdapterImpl) Opcodes() []common.MajorCode {
	return []common.MajorCode{
		common.OpCreateWindow,
		common.OpChangeWindowAttributes,
		common.OpGetWindowAttributes,
		common.OpDestroyWindow,
		common.OpMapWindow,
		common.OpUnmapWindow,
		common.OpConfigureWindow,
		common.OpGetGeometry,
		common.OpKillClient,
	}
}

func (adapter *windowAdapterImpl) Handle(client uint64, req *common.Message, state *DisplayState) *Response {
	switch common.MajorCode(req.Opcode) {
	case common.OpCreateWindow:
		return adapter.createWindow(client, req, state)
	case common.OpChangeWindowAttributes:
		return adapter.changeWindowAttributes(client, req, state)
	case common.OpGetWindowAttributes:
		return adapter.getWindowAttributes(client, req, state)
	case common.OpDestroyWindow:
		return adapter.destroyWindow(client, req, state)
	case common.OpMapWindow:
		return adapter.setMapped(client, req, state, true)
	case common.OpUnmapWindow:
		return adapter.setMapped(client, req, state, false)
	case common.OpConfigureWindow:
		return adapter.configureWindow(client, req, state)
	case common.OpGetGeometry:
		return adapter.getGeometry(req, state)
	case common.OpKillClient:
		return adapter.killClient(client, req, state)
	default:
		return fail(common.ErrRequest, 0)
	}
}

func (adapter *windowAdapterImpl) createWindow(client uint64, req *common.Message, state *DisplayState) *Response {
	var body common.CreateWindowBody
	if err := body.Decode(req.Body); err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.Lock()
	defer state.tree.Unlock()

	if body.Window == 0 {
		return fail(common.ErrIDChoice, body.Window)
	}
	if _, exists := state.lookup(body.Window); exists {
		return fail(common.ErrIDChoice, body.Window)
	}
	parent, found := state.lookup(body.Parent)
	if !found {
		return fail(common.ErrWindow, body.Parent)
	}
	if body.Width == 0 || body.Height == 0 {
		return fail(common.ErrValue, 0)
	}

	state.windows.Store(body.Window, &window{
		id:          body.Window,
		parent:      body.Parent,
		owner:       client,
		x:           body.X,
		y:           body.Y,
		width:       body.Width,
		height:      body.Height,
		borderWidth: body.BorderWidth,
		eventMasks:  make(map[uint64]uint32),
	})
	parent.children = append(parent.children, body.Window)

	return ok()
}

func (adapter *windowAdapterImpl) changeWindowAttributes(client uint64, req *common.Message, state *DisplayState) *Response {
	id, mask, err := common.DecodeWindowValue(req.Body)
	if err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.Lock()
	defer state.tree.Unlock()

	w, found := state.lookup(id)
	if !found {
		return fail(common.ErrWindow, id)
	}
	if mask == 0 {
		delete(w.eventMasks, client)
	} else {
		w.eventMasks[client] = mask
	}
	return ok()
}

func (adapter *windowAdapterImpl) getWindowAttributes(client uint64, req *common.Message, state *DisplayState) *Response {
	id, err := common.DecodeWindow(req.Body)
	if err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.RLock()
	defer state.tree.RUnlock()

	w, found := state.lookup(id)
	if !found {
		return fail(common.ErrWindow, id)
	}

	attrs := common.WindowAttributes{
		MapState:  common.MapStateUnmapped,
		EventMask: w.eventMasks[client],
	}
	if w.mapped {
		attrs.MapState = common.MapStateViewable
	}
	return reply(attrs.Encode())
}

func (adapter *windowAdapterImpl) destroyWindow(client uint64, req *common.Message, state *DisplayState) *Response {
	id, err := common.DecodeWindow(req.Body)
	if err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.Lock()
	defer state.tree.Unlock()

	w, found := state.lookup(id)
	if !found {
		return fail(common.ErrWindow, id)
	}
	// the root window cannot be destroyed
	if id == common.Root {
		return ok()
	}

	resp := ok()
	adapter.destroy(client, req, state, w, resp)
	return resp
}

// destroy removes w with its subtree and appends the DestroyNotify events the
// client selected, the caller must hold the tree lock for writing
func (adapter *windowAdapterImpl) destroy(client uint64, req *common.Message, state *DisplayState, w *window, resp *Response) {
	state.unlink(w)
	for _, removed := range state.destroySubtree(w) {
		if removed.selected(client, common.EventMaskStructureNotify) {
			resp.Events = append(resp.Events, common.NewEvent(common.EventDestroyNotify, req.Sequence, removed.id, nil))
		}
	}
}

func (adapter *windowAdapterImpl) setMapped(client uint64, req *common.Message, state *DisplayState, mapped bool) *Response {
	id, err := common.DecodeWindow(req.Body)
	if err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.Lock()
	defer state.tree.Unlock()

	w, found := state.lookup(id)
	if !found {
		return fail(common.ErrWindow, id)
	}
	// mapping state of the root never changes, and neither does a no-op request
	if id == common.Root || w.mapped == mapped {
		return ok()
	}

	w.mapped = mapped

	resp := ok()
	if w.selected(client, common.EventMaskStructureNotify) {
		code := common.EventMapNotify
		if !mapped {
			code = common.EventUnmapNotify
		}
		resp.Events = append(resp.Events, common.NewEvent(code, req.Sequence, id, nil))
	}
	return resp
}

func (adapter *windowAdapterImpl) configureWindow(client uint64, req *common.Message, state *DisplayState) *Response {
	var body common.ConfigureWindowBody
	if err := body.Decode(req.Body); err != nil {
		return fail(common.ErrLength, 0)
	}

	const allBits = common.ConfigX | common.ConfigY | common.ConfigWidth | common.ConfigHeight |
		common.ConfigBorderWidth | common.ConfigSibling | common.ConfigStackMode
	if body.Mask&^allBits != 0 {
		return fail(common.ErrValue, uint32(body.Mask))
	}
	if len(body.Values) != bitCount(body.Mask) {
		return fail(common.ErrLength, 0)
	}

	state.tree.Lock()
	defer state.tree.Unlock()

	w, found := state.lookup(body.Window)
	if !found {
		return fail(common.ErrWindow, body.Window)
	}

	// validate everything before changing anything
	width, hasWidth := body.Value(common.ConfigWidth)
	height, hasHeight := body.Value(common.ConfigHeight)
	if (hasWidth && uint16(width) == 0) || (hasHeight && uint16(height) == 0) {
		return fail(common.ErrValue, 0)
	}

	sibling, hasSibling := body.Value(common.ConfigSibling)
	mode, hasMode := body.Value(common.ConfigStackMode)
	if hasSibling && !hasMode {
		return fail(common.ErrMatch, body.Window)
	}
	if hasMode && mode > common.StackBelow {
		return fail(common.ErrValue, mode)
	}
	if hasSibling {
		other, found := state.lookup(sibling)
		if !found {
			return fail(common.ErrWindow, sibling)
		}
		if other.parent != w.parent || other.id == w.id {
			return fail(common.ErrMatch, body.Window)
		}
	}
	if w.id == common.Root {
		return fail(common.ErrMatch, body.Window)
	}

	if x, set := body.Value(common.ConfigX); set {
		w.x = int16(x)
	}
	if y, set := body.Value(common.ConfigY); set {
		w.y = int16(y)
	}
	if hasWidth {
		w.width = uint16(width)
	}
	if hasHeight {
		w.height = uint16(height)
	}
	if bw, set := body.Value(common.ConfigBorderWidth); set {
		w.borderWidth = uint16(bw)
	}

	above := state.below(w)
	if hasMode {
		above = state.restack(w, sibling, mode)
	}

	resp := ok()
	if w.selected(client, common.EventMaskStructureNotify) {
		ev := common.ConfigureNotify{Geometry: w.geometry(), AboveSibling: above}
		resp.Events = append(resp.Events, common.NewEvent(common.EventConfigureNotify, req.Sequence, w.id, ev.Encode()))
	}
	return resp
}

func (adapter *windowAdapterImpl) getGeometry(req *common.Message, state *DisplayState) *Response {
	id, err := common.DecodeWindow(req.Body)
	if err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.RLock()
	defer state.tree.RUnlock()

	w, found := state.lookup(id)
	if !found {
		return fail(common.ErrWindow, id)
	}
	return reply(w.geometry().Encode())
}

// killClient destroys every top level window of the client that created the resource
func (adapter *windowAdapterImpl) killClient(client uint64, req *common.Message, state *DisplayState) *Response {
	resource, err := common.DecodeUint32(req.Body)
	if err != nil {
		return fail(common.ErrLength, 0)
	}

	state.tree.Lock()
	defer state.tree.Unlock()

	w, found := state.lookup(resource)
	if !found || w.owner == 0 {
		return fail(common.ErrValue, resource)
	}

	resp := ok()
	for _, victim := range ownedTopLevel(state, w.owner) {
		adapter.destroy(client, req, state, victim, resp)
	}
	return resp
}

// ownedTopLevel returns the windows of owner whose parent is not owned by owner as well
func ownedTopLevel(state *DisplayState, owner uint64) []*window {
	var result []*window
	state.windows.Range(func(_ uint32, w *window) bool {
		if w.owner != owner {
			return true
		}
		if parent, found := state.lookup(w.parent); found && parent.owner == owner {
			return true
		}
		result = append(result, w)
		return true
	})
	return result
}

func bitCount(mask uint16) int {
	n := 0
	for ; mask != 0; mask &= mask - 1 {
		n++
	}
	return n
}
