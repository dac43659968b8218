package trl

import "github.com/ValentinKolb/xtrl/rpc/common"

// --------------------------------------------------------------------------
// Issuance
// --------------------------------------------------------------------------

// sendVoid sends a request without reply. In strict mode it is sent checked
// and validated before returning.
func (d *Display) sendVoid(opcode common.MajorCode, body []byte) Cookie {
	d.mustBeOpen()

	var flags uint8
	if d.strict {
		flags = common.FlagChecked
	}

	c := Cookie{Sequence: uint32(d.conn.SendRequest(common.NewRequest(opcode, flags, body)))}
	d.metrics.voidRequests.Inc()

	if d.strict && !c.IsZero() {
		d.checkStrict(c)
	}
	return c
}

// sendWithReply sends a request the server answers with a reply
func (d *Display) sendWithReply(opcode common.MajorCode, body []byte) Cookie {
	d.mustBeOpen()

	c := Cookie{Sequence: uint32(d.conn.SendRequest(common.NewRequest(opcode, common.FlagExpectsReply, body)))}
	d.metrics.replyRequests.Inc()
	return c
}

// --------------------------------------------------------------------------
// Window lifecycle
// --------------------------------------------------------------------------

// CreateWindow creates a new window below parent with a freshly generated id
func (d *Display) CreateWindow(parent uint32, x, y int16, width, height, borderWidth uint16) (uint32, Cookie) {
	d.mustBeOpen()
	window := d.GenerateID()
	body := common.CreateWindowBody{
		Window:      window,
		Parent:      parent,
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		BorderWidth: borderWidth,
	}
	return window, d.sendVoid(common.OpCreateWindow, body.Encode())
}

func (d *Display) DestroyWindow(window uint32) Cookie {
	return d.sendVoid(common.OpDestroyWindow, common.EncodeWindow(window))
}

func (d *Display) MapWindow(window uint32) Cookie {
	return d.sendVoid(common.OpMapWindow, common.EncodeWindow(window))
}

func (d *Display) UnmapWindow(window uint32) Cookie {
	return d.sendVoid(common.OpUnmapWindow, common.EncodeWindow(window))
}

// KillClient destroys the client that created resource
func (d *Display) KillClient(resource uint32) Cookie {
	return d.sendVoid(common.OpKillClient, common.EncodeUint32(resource))
}

// NoOperation sends a request the server ignores
func (d *Display) NoOperation() Cookie {
	return d.sendVoid(common.OpNoOperation, nil)
}

// --------------------------------------------------------------------------
// Attributes
// --------------------------------------------------------------------------

// ChangeWindowAttributes replaces the event mask of window
func (d *Display) ChangeWindowAttributes(window, eventMask uint32) Cookie {
	return d.sendVoid(common.OpChangeWindowAttributes, common.EncodeWindowValue(window, eventMask))
}

// SelectInput selects the events reported for window
func (d *Display) SelectInput(window, eventMask uint32) Cookie {
	return d.ChangeWindowAttributes(window, eventMask)
}

func (d *Display) GetWindowAttributes(window uint32) Cookie {
	return d.sendWithReply(common.OpGetWindowAttributes, common.EncodeWindow(window))
}

func (d *Display) GetGeometry(window uint32) Cookie {
	return d.sendWithReply(common.OpGetGeometry, common.EncodeWindow(window))
}

// InternAtom returns the atom for name, creating it unless onlyIfExists is set
func (d *Display) InternAtom(onlyIfExists bool, name string) Cookie {
	return d.sendWithReply(common.OpInternAtom, common.InternAtomBody{OnlyIfExists: onlyIfExists, Name: name}.Encode())
}

func (d *Display) GetInputFocus() Cookie {
	return d.sendWithReply(common.OpGetInputFocus, nil)
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// ConfigureWindow changes the values selected by mask. values holds one entry
// per set bit, lowest bit first.
func (d *Display) ConfigureWindow(window uint32, mask uint16, values []uint32) Cookie {
	body := common.ConfigureWindowBody{Window: window, Mask: mask, Values: values}
	return d.sendVoid(common.OpConfigureWindow, body.Encode())
}

func (d *Display) MoveWindow(window uint32, x, y int16) Cookie {
	return d.ConfigureWindow(window, common.ConfigX|common.ConfigY, []uint32{uint32(x), uint32(y)})
}

func (d *Display) ResizeWindow(window uint32, width, height uint16) Cookie {
	return d.ConfigureWindow(window, common.ConfigWidth|common.ConfigHeight, []uint32{uint32(width), uint32(height)})
}

func (d *Display) MoveResizeWindow(window uint32, x, y int16, width, height uint16) Cookie {
	mask := common.ConfigX | common.ConfigY | common.ConfigWidth | common.ConfigHeight
	return d.ConfigureWindow(window, mask, []uint32{uint32(x), uint32(y), uint32(width), uint32(height)})
}

// RaiseWindow puts window on top of its siblings
func (d *Display) RaiseWindow(window uint32) Cookie {
	return d.ConfigureWindow(window, common.ConfigStackMode, []uint32{common.StackAbove})
}

// LowerWindow puts window below its siblings
func (d *Display) LowerWindow(window uint32) Cookie {
	return d.ConfigureWindow(window, common.ConfigStackMode, []uint32{common.StackBelow})
}

func (d *Display) SetBorderWidth(window uint32, width uint16) Cookie {
	return d.ConfigureWindow(window, common.ConfigBorderWidth, []uint32{uint32(width)})
}

// SetSibling sets only the sibling of window. The server rejects a sibling
// without a stack mode with BadMatch.
func (d *Display) SetSibling(window, sibling uint32) Cookie {
	return d.ConfigureWindow(window, common.ConfigSibling, []uint32{sibling})
}
