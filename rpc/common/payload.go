package common

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// This file holds the body layouts of the requests and replies the client
// and the reference server both speak. All integers are big endian.

// Root is the id of the root window every server starts with
const Root uint32 = 0x00000100

// ConfigureWindow value mask bits, values follow in bit order
const (
	ConfigX           uint16 = 1 << 0
	ConfigY           uint16 = 1 << 1
	ConfigWidth       uint16 = 1 << 2
	ConfigHeight      uint16 = 1 << 3
	ConfigBorderWidth uint16 = 1 << 4
	ConfigSibling     uint16 = 1 << 5
	ConfigStackMode   uint16 = 1 << 6
)

// Stack modes for ConfigStackMode
const (
	StackAbove uint32 = 0
	StackBelow uint32 = 1
)

// Map states reported by GetWindowAttributes
const (
	MapStateUnmapped uint8 = 0
	MapStateViewable uint8 = 2
)

// ErrShortBody is returned when a body is shorter than its layout
var ErrShortBody = errors.New("body too short")

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// CreateWindowBody is the body of a CreateWindow request
type CreateWindowBody struct {
	Window, Parent uint32
	X, Y           int16
	Width, Height  uint16
	BorderWidth    uint16
}

func (b CreateWindowBody) Encode() []byte {
	buf := make([]byte, 18)
	binary.BigEndian.PutUint32(buf[0:4], b.Window)
	binary.BigEndian.PutUint32(buf[4:8], b.Parent)
	binary.BigEndian.PutUint16(buf[8:10], uint16(b.X))
	binary.BigEndian.PutUint16(buf[10:12], uint16(b.Y))
	binary.BigEndian.PutUint16(buf[12:14], b.Width)
	binary.BigEndian.PutUint16(buf[14:16], b.Height)
	binary.BigEndian.PutUint16(buf[16:18], b.BorderWidth)
	return buf
}

func (b *CreateWindowBody) Decode(buf []byte) error {
	if len(buf) < 18 {
		return ErrShortBody
	}
	b.Window = binary.BigEndian.Uint32(buf[0:4])
	b.Parent = binary.BigEndian.Uint32(buf[4:8])
	b.X = int16(binary.BigEndian.Uint16(buf[8:10]))
	b.Y = int16(binary.BigEndian.Uint16(buf[10:12]))
	b.Width = binary.BigEndian.Uint16(buf[12:14])
	b.Height = binary.BigEndian.Uint16(buf[14:16])
	b.BorderWidth = binary.BigEndian.Uint16(buf[16:18])
	return nil
}

// EncodeWindow encodes the body of requests that only carry a window or resource id
func EncodeWindow(window uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, window)
	return buf
}

// DecodeWindow decodes a body starting with a window or resource id
func DecodeWindow(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, ErrShortBody
	}
	return binary.BigEndian.Uint32(buf[0:4]), nil
}

// EncodeWindowValue encodes a window followed by one 32-bit value (ChangeWindowAttributes)
func EncodeWindowValue(window, value uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], window)
	binary.BigEndian.PutUint32(buf[4:8], value)
	return buf
}

// DecodeWindowValue decodes a body produced by EncodeWindowValue
func DecodeWindowValue(buf []byte) (uint32, uint32, error) {
	if len(buf) < 8 {
		return 0, 0, ErrShortBody
	}
	return binary.BigEndian.Uint32(buf[0:4]), binary.BigEndian.Uint32(buf[4:8]), nil
}

// ConfigureWindowBody is the body of a ConfigureWindow request.
// Values holds one entry per set mask bit, lowest bit first.
type ConfigureWindowBody struct {
	Window uint32
	Mask   uint16
	Values []uint32
}

func (b ConfigureWindowBody) Encode() []byte {
	buf := make([]byte, 6+4*len(b.Values))
	binary.BigEndian.PutUint32(buf[0:4], b.Window)
	binary.BigEndian.PutUint16(buf[4:6], b.Mask)
	for i, v := range b.Values {
		binary.BigEndian.PutUint32(buf[6+4*i:10+4*i], v)
	}
	return buf
}

func (b *ConfigureWindowBody) Decode(buf []byte) error {
	if len(buf) < 6 {
		return ErrShortBody
	}
	b.Window = binary.BigEndian.Uint32(buf[0:4])
	b.Mask = binary.BigEndian.Uint16(buf[4:6])
	rest := buf[6:]
	if len(rest)%4 != 0 {
		return fmt.Errorf("value list length %d is not a multiple of 4", len(rest))
	}
	b.Values = make([]uint32, len(rest)/4)
	for i := range b.Values {
		b.Values[i] = binary.BigEndian.Uint32(rest[4*i : 4*i+4])
	}
	return nil
}

// Value returns the value for a single mask bit
func (b *ConfigureWindowBody) Value(bit uint16) (uint32, bool) {
	if b.Mask&bit == 0 {
		return 0, false
	}
	i := 0
	for m := uint16(1); m < bit; m <<= 1 {
		if b.Mask&m != 0 {
			i++
		}
	}
	if i >= len(b.Values) {
		return 0, false
	}
	return b.Values[i], true
}

// InternAtomBody is the body of an InternAtom request
type InternAtomBody struct {
	OnlyIfExists bool
	Name         string
}

func (b InternAtomBody) Encode() []byte {
	buf := make([]byte, 1+len(b.Name))
	if b.OnlyIfExists {
		buf[0] = 1
	}
	copy(buf[1:], b.Name)
	return buf
}

func (b *InternAtomBody) Decode(buf []byte) error {
	if len(buf) < 1 {
		return ErrShortBody
	}
	b.OnlyIfExists = buf[0] != 0
	b.Name = string(buf[1:])
	return nil
}

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// Geometry is the reply of GetGeometry
type Geometry struct {
	Root          uint32
	X, Y          int16
	Width, Height uint16
	BorderWidth   uint16
}

func (g Geometry) Encode() []byte {
	buf := make([]byte, 14)
	binary.BigEndian.PutUint32(buf[0:4], g.Root)
	binary.BigEndian.PutUint16(buf[4:6], uint16(g.X))
	binary.BigEndian.PutUint16(buf[6:8], uint16(g.Y))
	binary.BigEndian.PutUint16(buf[8:10], g.Width)
	binary.BigEndian.PutUint16(buf[10:12], g.Height)
	binary.BigEndian.PutUint16(buf[12:14], g.BorderWidth)
	return buf
}

func (g *Geometry) Decode(buf []byte) error {
	if len(buf) < 14 {
		return ErrShortBody
	}
	g.Root = binary.BigEndian.Uint32(buf[0:4])
	g.X = int16(binary.BigEndian.Uint16(buf[4:6]))
	g.Y = int16(binary.BigEndian.Uint16(buf[6:8]))
	g.Width = binary.BigEndian.Uint16(buf[8:10])
	g.Height = binary.BigEndian.Uint16(buf[10:12])
	g.BorderWidth = binary.BigEndian.Uint16(buf[12:14])
	return nil
}

// WindowAttributes is the reply of GetWindowAttributes
type WindowAttributes struct {
	MapState         uint8
	OverrideRedirect bool
	EventMask        uint32
}

func (a WindowAttributes) Encode() []byte {
	buf := make([]byte, 6)
	buf[0] = a.MapState
	if a.OverrideRedirect {
		buf[1] = 1
	}
	binary.BigEndian.PutUint32(buf[2:6], a.EventMask)
	return buf
}

func (a *WindowAttributes) Decode(buf []byte) error {
	if len(buf) < 6 {
		return ErrShortBody
	}
	a.MapState = buf[0]
	a.OverrideRedirect = buf[1] != 0
	a.EventMask = binary.BigEndian.Uint32(buf[2:6])
	return nil
}

// EncodeUint32 encodes a reply carrying a single value (InternAtom, GetInputFocus)
func EncodeUint32(v uint32) []byte {
	return EncodeWindow(v)
}

// DecodeUint32 decodes a reply produced by EncodeUint32
func DecodeUint32(buf []byte) (uint32, error) {
	return DecodeWindow(buf)
}

// --------------------------------------------------------------------------
// Event bodies
// --------------------------------------------------------------------------

// ConfigureNotify is the body of a ConfigureNotify event
type ConfigureNotify struct {
	Geometry
	AboveSibling uint32 // 0 if the window is at the bottom of the stack
}

func (n ConfigureNotify) Encode() []byte {
	buf := make([]byte, 18)
	copy(buf, n.Geometry.Encode())
	binary.BigEndian.PutUint32(buf[14:18], n.AboveSibling)
	return buf
}

func (n *ConfigureNotify) Decode(buf []byte) error {
	if len(buf) < 18 {
		return ErrShortBody
	}
	if err := n.Geometry.Decode(buf[:14]); err != nil {
		return err
	}
	n.AboveSibling = binary.BigEndian.Uint32(buf[14:18])
	return nil
}
