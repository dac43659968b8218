package server

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// NewAtomAdapter creates the adapter for atoms, the input focus query and NoOperation
func NewAtomAdapter() IRequestAdapter {
	return &atomAdapterImpl{}
}

type atomAdapterImpl struct{}

func (adapter *atomAdapterImpl) Opcodes() []common.MajorCode {
	return []common.MajorCode{
		common.OpInternAtom,
		common.OpGetInputFocus,
		common.OpNoOperation,
	}
}

func (adapter *atomAdapterImpl) Handle(_ uint64, req *common.Message, state *DisplayState) *Response {
	switch common.MajorCode(req.Opcode) {
	case common.OpInternAtom:
		var body common.InternAtomBody
		if err := body.Decode(req.Body); err != nil {
			return fail(common.ErrLength, 0)
		}
		if body.Name == "" {
			return fail(common.ErrValue, 0)
		}
		// an unknown name with only_if_exists set answers atom None
		return reply(common.EncodeUint32(state.internAtom(body.Name, !body.OnlyIfExists)))

	case common.OpGetInputFocus:
		// focus never leaves the root
		return reply(common.EncodeUint32(common.Root))

	case common.OpNoOperation:
		return ok()

	default:
		return fail(common.ErrRequest, 0)
	}
}
