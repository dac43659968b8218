package server

import (
	"code.hybscloud.com/atomix"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
)

// firstFreeAtom is the first atom handed out for a new name, lower atoms are predefined
const firstFreeAtom uint32 = 69

// predefinedAtoms lists the predefined atoms known to the server
var predefinedAtoms = map[string]uint32{
	"PRIMARY":          1,
	"SECONDARY":        2,
	"ATOM":             4,
	"CARDINAL":         6,
	"INTEGER":          19,
	"STRING":           31,
	"WINDOW":           33,
	"WM_HINTS":         35,
	"WM_NAME":          39,
	"WM_NORMAL_HINTS":  40,
	"WM_CLASS":         67,
	"WM_TRANSIENT_FOR": 68,
}

// window is one window of the display
type window struct {
	id     uint32
	parent uint32
	owner  uint64 // client that created the window, 0 for the root

	x, y          int16
	width, height uint16
	borderWidth   uint16
	mapped        bool

	children   []uint32          // stacking order, bottom first
	eventMasks map[uint64]uint32 // selected events per client
}

// selected returns true if client selected any of the events in mask on the window
func (w *window) selected(client uint64, mask uint32) bool {
	return w.eventMasks[client]&mask != 0
}

// geometry returns the geometry reply of the window
func (w *window) geometry() common.Geometry {
	return common.Geometry{
		Root:        common.Root,
		X:           w.x,
		Y:           w.y,
		Width:       w.width,
		Height:      w.height,
		BorderWidth: w.borderWidth,
	}
}

// DisplayState is the in-memory state shared by all clients of a display server:
// the window tree and the atom table.
type DisplayState struct {
	// tree guards the fields of all windows and the hierarchy
	tree    sync.RWMutex
	windows *xsync.MapOf[uint32, *window]

	atoms    *xsync.MapOf[string, uint32]
	nextAtom atomix.Uint64
}

// NewDisplayState creates a state holding only the root window and the predefined atoms
func NewDisplayState(width, height uint16) *DisplayState {
	s := &DisplayState{
		windows: xsync.NewMapOf[uint32, *window](),
		atoms:   xsync.NewMapOf[string, uint32](),
	}

	s.windows.Store(common.Root, &window{
		id:         common.Root,
		width:      width,
		height:     height,
		mapped:     true,
		eventMasks: make(map[uint64]uint32),
	})

	for name, atom := range predefinedAtoms {
		s.atoms.Store(name, atom)
	}
	s.nextAtom.Store(uint64(firstFreeAtom) - 1)

	return s
}

// WindowCount returns the number of windows including the root
func (s *DisplayState) WindowCount() int {
	return s.windows.Size()
}

// lookup returns the window with the given id, the caller must hold tree
func (s *DisplayState) lookup(id uint32) (*window, bool) {
	return s.windows.Load(id)
}

// internAtom returns the atom of name, creating it if create is set
func (s *DisplayState) internAtom(name string, create bool) uint32 {
	if !create {
		atom, _ := s.atoms.Load(name)
		return atom
	}
	atom, _ := s.atoms.LoadOrCompute(name, func() uint32 {
		return uint32(s.nextAtom.Add(1))
	})
	return atom
}

// destroySubtree removes w and all of its descendants, children first. It returns
// the removed windows in destruction order. The caller must hold tree for writing.
func (s *DisplayState) destroySubtree(w *window) []*window {
	var removed []*window
	for _, childID := range w.children {
		if child, ok := s.lookup(childID); ok {
			removed = append(removed, s.destroySubtree(child)...)
		}
	}
	w.children = nil
	s.windows.Delete(w.id)
	return append(removed, w)
}

// unlink removes w from the stacking order of its parent, the caller must hold tree for writing
func (s *DisplayState) unlink(w *window) {
	parent, ok := s.lookup(w.parent)
	if !ok {
		return
	}
	parent.children = removeID(parent.children, w.id)
}

// restack moves w above or below sibling (or all siblings if sibling is 0) and
// returns the window directly below w afterwards. The caller must hold tree for writing.
func (s *DisplayState) restack(w *window, sibling uint32, mode uint32) uint32 {
	parent, ok := s.lookup(w.parent)
	if !ok {
		return 0
	}
	order := removeID(parent.children, w.id)

	pos := len(order) // top
	if mode == common.StackBelow {
		pos = 0
	}
	if sibling != 0 {
		for i, id := range order {
			if id == sibling {
				pos = i
				if mode == common.StackAbove {
					pos = i + 1
				}
				break
			}
		}
	}

	order = append(order, 0)
	copy(order[pos+1:], order[pos:])
	order[pos] = w.id
	parent.children = order

	if pos == 0 {
		return 0
	}
	return order[pos-1]
}

// below returns the sibling directly below w, the caller must hold tree
func (s *DisplayState) below(w *window) uint32 {
	parent, ok := s.lookup(w.parent)
	if !ok {
		return 0
	}
	for i, id := range parent.children {
		if id == w.id && i > 0 {
			return parent.children[i-1]
		}
	}
	return 0
}

func removeID(ids []uint32, id uint32) []uint32 {
	out := ids[:0]
	for _, other := range ids {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}
