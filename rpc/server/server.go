package server

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"net"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("server")

// Default size of the root window
const (
	DefaultScreenWidth  uint16 = 1920
	DefaultScreenHeight uint16 = 1080
)

// DisplayServer is a small in-memory display server. It keeps a window tree
// and an atom table and answers the requests of the core protocol subset the
// client library issues. Requests of one client are processed strictly in
// order; for request N the server answers with an error or a reply, followed
// by the events the request caused, all stamped with N.
type DisplayServer struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	state     *DisplayState
	faults    *FaultProfile
	adapters  map[common.MajorCode]IRequestAdapter
	metrics   gometrics.Registry
}

// NewDisplayServer creates a new display server
//
// Usage:
//
//	s, err := server.NewDisplayServer(*config, tcp.NewTCPServerTransport())
//	if err != nil {
//		panic(err)
//	}
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewDisplayServer(config common.ServerConfig, t transport.IServerTransport) (*DisplayServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	var faults *FaultProfile
	if config.FaultProfile != "" {
		var err error
		if faults, err = LoadFaultProfile(config.FaultProfile); err != nil {
			return nil, err
		}
		Logger.Infof("Loaded %d faults from %s", len(faults.faults), config.FaultProfile)
	}

	s := newDisplayServer(config, faults)
	s.transport = t

	if t != nil {
		t.RegisterHandler(s.Handle)
		t.RegisterDisconnectHandler(s.Disconnect)
	}

	Logger.Infof("Created display server")
	Logger.Infof(config.String())

	return s, nil
}

// newDisplayServer creates a server without a transport
func newDisplayServer(config common.ServerConfig, faults *FaultProfile) *DisplayServer {
	s := &DisplayServer{
		config:   config,
		state:    NewDisplayState(DefaultScreenWidth, DefaultScreenHeight),
		faults:   faults,
		adapters: make(map[common.MajorCode]IRequestAdapter),
		metrics:  gometrics.NewRegistry(),
	}
	for _, adapter := range []IRequestAdapter{NewWindowAdapter(), NewAtomAdapter()} {
		for _, opcode := range adapter.Opcodes() {
			s.adapters[opcode] = adapter
		}
	}
	return s
}

// SetFaultProfile replaces the fault profile, nil disables fault injection
func (s *DisplayServer) SetFaultProfile(p *FaultProfile) {
	s.faults = p
}

// State returns the shared display state
func (s *DisplayServer) State() *DisplayState {
	return s.state
}

// Serve starts the transport layer and blocks until it is closed
func (s *DisplayServer) Serve() error {
	if s.transport == nil {
		return fmt.Errorf("no transport configured")
	}
	return s.transport.Listen(s.config)
}

// ServeConn serves a single already established connection until it closes
func (s *DisplayServer) ServeConn(conn net.Conn) {
	s.transport.ServeConn(conn, s.config)
}

// Close stops accepting new clients
func (s *DisplayServer) Close() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}

// Handle processes one request of client and returns the messages to send back
func (s *DisplayServer) Handle(client uint64, req *common.Message) []*common.Message {
	start := time.Now()
	opcode := common.MajorCode(req.Opcode)

	resp := s.execute(client, req)

	gometrics.GetOrRegisterCounter("requests."+opcode.String(), s.metrics).Inc(1)
	gometrics.GetOrRegisterTimer("handle", s.metrics).UpdateSince(start)

	if resp.ErrorCode != common.ErrSuccess {
		gometrics.GetOrRegisterCounter("errors."+resp.ErrorCode.String(), s.metrics).Inc(1)
		Logger.Debugf("Client %d: request %d (%s) failed with %s", client, req.Sequence, opcode, resp.ErrorCode)
		// an error replaces the reply and the request has no effect
		return []*common.Message{common.NewErrorMessage(req, resp.ErrorCode, resp.Resource)}
	}

	out := make([]*common.Message, 0, 1+len(resp.Events))
	if req.ExpectsReply() {
		body := resp.Reply
		if body == nil {
			body = []byte{}
		}
		out = append(out, common.NewReply(req.Sequence, body))
	}
	return append(out, resp.Events...)
}

func (s *DisplayServer) execute(client uint64, req *common.Message) *Response {
	opcode := common.MajorCode(req.Opcode)

	if req.Kind != common.MsgKRequest {
		return fail(common.ErrRequest, 0)
	}
	if f, hit := s.faults.match(opcode); hit {
		Logger.Infof("Client %d: injecting %s for request %d (%s)", client, f.ErrorCode, req.Sequence, opcode)
		return fail(f.ErrorCode, f.Resource)
	}

	adapter, found := s.adapters[opcode]
	if !found {
		if opcode.Known() {
			return fail(common.ErrImplementation, 0)
		}
		return fail(common.ErrRequest, 0)
	}
	return adapter.Handle(client, req, s.state)
}

// Disconnect releases everything a client created. The transport calls it
// when the connection of the client closes.
func (s *DisplayServer) Disconnect(client uint64) {
	s.state.tree.Lock()
	victims := ownedTopLevel(s.state, client)
	for _, w := range victims {
		s.state.unlink(w)
		s.state.destroySubtree(w)
	}
	s.state.tree.Unlock()

	Logger.Infof("Client %d: released %d windows, %d windows left", client, len(victims), s.state.WindowCount())
	Logger.Debugf("Metrics:\n%s", s.metricsString())
}

// WriteMetrics writes the request counters and the handling timer to w
func (s *DisplayServer) WriteMetrics(w io.Writer) {
	gometrics.WriteOnce(s.metrics, w)
}

// RequestCount returns how often requests with opcode were handled
func (s *DisplayServer) RequestCount(opcode common.MajorCode) int64 {
	return gometrics.GetOrRegisterCounter("requests."+opcode.String(), s.metrics).Count()
}

// ErrorCount returns how often requests failed with code
func (s *DisplayServer) ErrorCount(code common.ErrorCode) int64 {
	return gometrics.GetOrRegisterCounter("errors."+code.String(), s.metrics).Count()
}

func (s *DisplayServer) metricsString() string {
	var b strings.Builder
	s.WriteMetrics(&b)
	return b.String()
}
