package common

import "fmt"

// --------------------------------------------------------------------------
// Error codes
// --------------------------------------------------------------------------

// ErrorCode is the error_code field of a protocol error.
type ErrorCode uint8

const (
	ErrSuccess        ErrorCode = 0 // reserved, "no error"
	ErrRequest        ErrorCode = 1
	ErrValue          ErrorCode = 2
	ErrWindow         ErrorCode = 3
	ErrPixmap         ErrorCode = 4
	ErrAtom           ErrorCode = 5
	ErrCursor         ErrorCode = 6
	ErrFont           ErrorCode = 7
	ErrMatch          ErrorCode = 8
	ErrDrawable       ErrorCode = 9
	ErrAccess         ErrorCode = 10
	ErrAlloc          ErrorCode = 11
	ErrColormap       ErrorCode = 12
	ErrGContext       ErrorCode = 13
	ErrIDChoice       ErrorCode = 14
	ErrName           ErrorCode = 15
	ErrLength         ErrorCode = 16
	ErrImplementation ErrorCode = 17
)

// UnknownName is returned by the code lookups for out of range values
const UnknownName = "Unknown"

var errorCodeNames = [...]string{
	ErrSuccess:        "Success",
	ErrRequest:        "BadRequest",
	ErrValue:          "BadValue",
	ErrWindow:         "BadWindow",
	ErrPixmap:         "BadPixmap",
	ErrAtom:           "BadAtom",
	ErrCursor:         "BadCursor",
	ErrFont:           "BadFont",
	ErrMatch:          "BadMatch",
	ErrDrawable:       "BadDrawable",
	ErrAccess:         "BadAccess",
	ErrAlloc:          "BadAlloc",
	ErrColormap:       "BadColor",
	ErrGContext:       "BadGC",
	ErrIDChoice:       "BadIDChoice",
	ErrName:           "BadName",
	ErrLength:         "BadLength",
	ErrImplementation: "BadImplementation",
}

// String returns the name of the error code or UnknownName
func (c ErrorCode) String() string {
	if int(c) >= len(errorCodeNames) {
		return UnknownName
	}
	return errorCodeNames[c]
}

// Known returns true if the code has a name in the table
func (c ErrorCode) Known() bool {
	return int(c) < len(errorCodeNames)
}

// --------------------------------------------------------------------------
// Major opcodes
// --------------------------------------------------------------------------

// MajorCode is the major opcode of a request.
type MajorCode uint8

const (
	OpCreateWindow           MajorCode = 1
	OpChangeWindowAttributes MajorCode = 2
	OpGetWindowAttributes    MajorCode = 3
	OpDestroyWindow          MajorCode = 4
	OpMapWindow              MajorCode = 8
	OpUnmapWindow            MajorCode = 10
	OpConfigureWindow        MajorCode = 12
	OpGetGeometry            MajorCode = 14
	OpInternAtom             MajorCode = 16
	OpGetInputFocus          MajorCode = 43
	OpKillClient             MajorCode = 113
	OpNoOperation            MajorCode = 127
)

// majorCodeNames holds the core request names, index 0 is unused
var majorCodeNames = [...]string{
	0:   "",
	1:   "CreateWindow",
	2:   "ChangeWindowAttributes",
	3:   "GetWindowAttributes",
	4:   "DestroyWindow",
	5:   "DestroySubwindows",
	6:   "ChangeSaveSet",
	7:   "ReparentWindow",
	8:   "MapWindow",
	9:   "MapSubwindows",
	10:  "UnmapWindow",
	11:  "UnmapSubwindows",
	12:  "ConfigureWindow",
	13:  "CirculateWindow",
	14:  "GetGeometry",
	15:  "QueryTree",
	16:  "InternAtom",
	17:  "GetAtomName",
	18:  "ChangeProperty",
	19:  "DeleteProperty",
	20:  "GetProperty",
	21:  "ListProperties",
	22:  "SetSelectionOwner",
	23:  "GetSelectionOwner",
	24:  "ConvertSelection",
	25:  "SendEvent",
	26:  "GrabPointer",
	27:  "UngrabPointer",
	28:  "GrabButton",
	29:  "UngrabButton",
	30:  "ChangeActivePointerGrab",
	31:  "GrabKeyboard",
	32:  "UngrabKeyboard",
	33:  "GrabKey",
	34:  "UngrabKey",
	35:  "AllowEvents",
	36:  "GrabServer",
	37:  "UngrabServer",
	38:  "QueryPointer",
	39:  "GetMotionEvents",
	40:  "TranslateCoordinates",
	41:  "WarpPointer",
	42:  "SetInputFocus",
	43:  "GetInputFocus",
	44:  "QueryKeymap",
	45:  "OpenFont",
	46:  "CloseFont",
	47:  "QueryFont",
	48:  "QueryTextExtents",
	49:  "ListFonts",
	50:  "ListFontsWithInfo",
	51:  "SetFontPath",
	52:  "GetFontPath",
	53:  "CreatePixmap",
	54:  "FreePixmap",
	55:  "CreateGC",
	56:  "ChangeGC",
	57:  "CopyGC",
	58:  "SetDashes",
	59:  "SetClipRectangles",
	60:  "FreeGC",
	61:  "ClearArea",
	62:  "CopyArea",
	63:  "CopyPlane",
	64:  "PolyPoint",
	65:  "PolyLine",
	66:  "PolySegment",
	67:  "PolyRectangle",
	68:  "PolyArc",
	69:  "FillPoly",
	70:  "PolyFillRectangle",
	71:  "PolyFillArc",
	72:  "PutImage",
	73:  "GetImage",
	74:  "PolyText8",
	75:  "PolyText16",
	76:  "ImageText8",
	77:  "ImageText16",
	78:  "CreateColormap",
	79:  "FreeColormap",
	80:  "CopyColormapAndFree",
	81:  "InstallColormap",
	82:  "UninstallColormap",
	83:  "ListInstalledColormaps",
	84:  "AllocColor",
	85:  "AllocNamedColor",
	86:  "AllocColorCells",
	87:  "AllocColorPlanes",
	88:  "FreeColors",
	89:  "StoreColors",
	90:  "StoreNamedColor",
	91:  "QueryColors",
	92:  "LookupColor",
	93:  "CreateCursor",
	94:  "CreateGlyphCursor",
	95:  "FreeCursor",
	96:  "RecolorCursor",
	97:  "QueryBestSize",
	98:  "QueryExtension",
	99:  "ListExtensions",
	100: "ChangeKeyboardMapping",
	101: "GetKeyboardMapping",
	102: "ChangeKeyboardControl",
	103: "GetKeyboardControl",
	104: "Bell",
	105: "ChangePointerControl",
	106: "GetPointerControl",
	107: "SetScreenSaver",
	108: "GetScreenSaver",
	109: "ChangeHosts",
	110: "ListHosts",
	111: "SetAccessControl",
	112: "SetCloseDownMode",
	113: "KillClient",
	114: "RotateProperties",
	115: "ForceScreenSaver",
	116: "SetPointerMapping",
	117: "GetPointerMapping",
	118: "SetModifierMapping",
	119: "GetModifierMapping",
	120: "",
	121: "",
	122: "",
	123: "",
	124: "",
	125: "",
	126: "",
	127: "NoOperation",
}

// String returns the request name for the opcode or UnknownName.
// Opcodes above 127 belong to extensions and are not named here.
func (c MajorCode) String() string {
	if int(c) >= len(majorCodeNames) || majorCodeNames[c] == "" {
		return UnknownName
	}
	return majorCodeNames[c]
}

// Known returns true if the opcode has a name in the table
func (c MajorCode) Known() bool {
	return c.String() != UnknownName
}

// --------------------------------------------------------------------------
// Generic error
// --------------------------------------------------------------------------

// GenericError is a decoded protocol error.
type GenericError struct {
	ErrorCode    ErrorCode
	MajorCode    MajorCode
	MinorCode    uint16
	Sequence     uint16 // low 16 bits, as reported by the server
	ResourceID   uint32
	FullSequence uint32
}

// DecodeError builds a GenericError from an error message
func DecodeError(msg *Message) *GenericError {
	return &GenericError{
		ErrorCode:    ErrorCode(msg.Code),
		MajorCode:    MajorCode(msg.Opcode),
		MinorCode:    msg.Minor,
		Sequence:     uint16(msg.Sequence),
		ResourceID:   msg.Resource,
		FullSequence: msg.Sequence,
	}
}

// Error implements the error interface
func (e *GenericError) Error() string {
	return fmt.Sprintf("%s (%d) in %s (%d.%d), sequence %d, resource 0x%08x",
		e.ErrorCode, uint8(e.ErrorCode), e.MajorCode, uint8(e.MajorCode), e.MinorCode, e.FullSequence, e.ResourceID)
}

// Describe returns a multi field diagnostic containing all six fields and the decoded names
func (e *GenericError) Describe() string {
	return fmt.Sprintf("error_code: %d (%s), major_code: %d (%s), minor_code: %d, sequence: %d, resource_id: 0x%08x, full_sequence: %d",
		uint8(e.ErrorCode), e.ErrorCode, uint8(e.MajorCode), e.MajorCode, e.MinorCode, e.Sequence, e.ResourceID, e.FullSequence)
}
