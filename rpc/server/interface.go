package server

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
)

// IRequestAdapter is the interface for all request adapters of the display server.
// An adapter implements a group of requests against the shared display state.
type IRequestAdapter interface {
	// Opcodes returns the major opcodes the adapter handles
	Opcodes() []common.MajorCode

	// Handle executes a request for the given client and returns its outcome.
	// It must not return nil.
	Handle(client uint64, req *common.Message, state *DisplayState) *Response
}

// Response is the outcome of one request
type Response struct {
	// ErrorCode is ErrSuccess if the request succeeded
	ErrorCode common.ErrorCode
	// Resource is the offending resource id of an error
	Resource uint32
	// Reply is the reply body, only used for requests that expect a reply
	Reply []byte
	// Events caused by the request, in order
	Events []*common.Message
}

// ok creates a successful response
func ok() *Response {
	return &Response{}
}

// reply creates a successful response with a reply body
func reply(body []byte) *Response {
	return &Response{Reply: body}
}

// fail creates an error response
func fail(code common.ErrorCode, resource uint32) *Response {
	return &Response{ErrorCode: code, Resource: resource}
}
