// Package server implements a small in-memory display server that speaks the
// subset of the core protocol the trl client library issues. It exists to run
// the client against something real: tests, the probe commands of the CLI
// and benchmarks all talk to it over one of the transports.
//
// Key Components:
//
//   - DisplayServer: routes each request to the adapter registered for its
//     opcode and turns the outcome into wire messages. For request N it emits
//     an error, or a reply if the request expects one, followed by the events
//     the request caused. All of them carry sequence N. Unknown opcodes are
//     rejected with BadRequest, known but unimplemented ones with
//     BadImplementation.
//
//   - DisplayState: the window tree (with stacking order, geometry, map state
//     and per client event masks) and the atom table shared by all clients.
//
//   - IRequestAdapter: the contract for a group of requests. NewWindowAdapter
//     covers window lifecycle, attributes and ConfigureWindow, NewAtomAdapter
//     covers InternAtom, GetInputFocus and NoOperation.
//
//   - FaultProfile: a TOML file that makes the server reject chosen requests
//     with chosen errors, used to provoke the error paths of a client.
//
// Events are only delivered to the client whose request caused them, and only
// if that client selected StructureNotify on the window.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport: common.TransportConfig{Endpoint: "/tmp/xtrl.sock"},
//	  LogLevel:  "info",
//	}
//
//	s, err := server.NewDisplayServer(config, unix.NewUnixServerTransport())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	if err := s.Serve(); err != nil {
//	  log.Fatal(err)
//	}
package server
