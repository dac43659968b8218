package base

import (
	"bufio"
	"code.hybscloud.com/atomix"
	"errors"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/serializer"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var ServerLogger = logger.GetLogger("transport/srv")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	disconnect transport.DisconnectFunc
	listener   net.Listener
	bufferPool *sync.Pool
	nextClient atomix.Uint64
	closing    atomic.Bool
	conns      sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport. bufferSize is the size
// of the pooled read buffers, frames larger than that use a temporary buffer.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IServerTransport {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &serverTransport{
		connector: connector,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) RegisterDisconnectHandler(handler transport.DisconnectFunc) {
	t.disconnect = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	if t.connector == nil {
		return fmt.Errorf("no connector configured")
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener

	ServerLogger.Infof("Starting %s display server on %s", t.connector.GetName(), config.Transport.Endpoint)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closing.Load() || errors.Is(err, net.ErrClosed) {
				t.conns.Wait()
				return nil
			}
			ServerLogger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			ServerLogger.Errorf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.conns.Add(1)
		go func() {
			defer t.conns.Done()
			t.ServeConn(conn, config)
		}()
	}
}

func (t *serverTransport) ServeConn(conn net.Conn, config common.ServerConfig) {
	defer conn.Close()

	client := t.nextClient.Add(1)
	defer func() {
		if t.disconnect != nil {
			t.disconnect(client)
		}
	}()

	s, err := serializer.New(config.Transport.Serializer)
	if err != nil {
		ServerLogger.Errorf("Client %d: %v", client, err)
		return
	}

	// Timeout in seconds
	timeout := time.Duration(config.TimeoutSecond) * time.Second

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	ServerLogger.Infof("Client %d connected", client)

	// Function to handle one incoming request
	handleRequest := func() error {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set read deadline: %w", err)
			}
		}

		// Get a buffer from the pool, the serializer copies the body
		buf := t.bufferPool.Get().([]byte)
		data, err := readFrame(reader, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}

		req := &common.Message{}
		err = s.Deserialize(data, req)
		t.bufferPool.Put(buf)
		if err != nil {
			return fmt.Errorf("malformed request: %w", err)
		}

		start := time.Now()
		responses := t.handler(client, req)
		ServerLogger.Debugf("Client %d: request %d (%s) took %s", client, req.Sequence, common.MajorCode(req.Opcode), time.Since(start))

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set write deadline: %w", err)
			}
		}

		for _, resp := range responses {
			out, err := s.Serialize(*resp)
			if err != nil {
				return fmt.Errorf("failed to serialize response: %w", err)
			}
			if err := writeFrame(writer, out); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}

		// answers of a pipelined batch go out together
		if reader.Buffered() == 0 {
			return writer.Flush()
		}
		return nil
	}

	// Handle requests in a loop
	for {
		err := handleRequest()

		// Case EOF: Connection closed by client
		if errors.Is(err, io.EOF) {
			ServerLogger.Infof("Client %d: connection closed by client", client)
			return
		}

		// Case error: log and close connection
		if err != nil {
			if !t.closing.Load() {
				ServerLogger.Errorf("Client %d: error handling request: %v", client, err)
			}
			return
		}
	}
}

func (t *serverTransport) Close() error {
	t.closing.Store(true)
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}
