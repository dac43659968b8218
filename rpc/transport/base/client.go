package base

import (
	"bufio"
	"code.hybscloud.com/atomix"
	"errors"
	"fmt"
	"github.com/ValentinKolb/xtrl/lib/queue"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/serializer"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/conn")

const defaultRequestBufferSize = 64 * 1024 // 64 KB

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// pendingReply tracks one request whose reply or error is held for retrieval.
// All fields except done are written by the reader goroutine before done is closed.
type pendingReply struct {
	seq     uint64
	checked bool // void request sent with common.FlagChecked
	done    chan struct{}
	reply   *common.Message
	errMsg  *common.Message
	lost    error // set if the connection failed before the outcome arrived
}

func (p *pendingReply) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// clientConnection implements transport.IConnection independent of the
// specific transport medium (unix, tcp, etc.)
type clientConnection struct {
	connector  IClientConnector
	config     common.ClientConfig
	serializer serializer.IRPCSerializer

	conn net.Conn

	// Outgoing side, writeMu protects the buffered writer and the request counter
	writeMu     sync.Mutex
	writer      *bufio.Writer
	lastRequest atomix.Uint64 // full sequence of the last request sent

	// Incoming side
	lastRead atomix.Uint64 // highest full sequence seen from the server
	pending  *xsync.MapOf[uint64, *pendingReply]
	inflight []*pendingReply // unresolved entries in sequence order
	flightMu sync.Mutex
	events   *queue.LockFreeMPSC[common.Message]

	readerDone chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool

	errMu sync.Mutex
	err   error
}

// -----------------------------------------------------------
// Transport Factory Methods (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseConnection creates a new unconnected connection that dials with the given connector
func NewBaseConnection(connector IClientConnector) transport.IConnection {
	return newClientConnection(connector)
}

// NewConnectionFromConn wraps an already established net.Conn and starts reading from it
func NewConnectionFromConn(conn net.Conn, config common.ClientConfig) (transport.IConnection, error) {
	c := newClientConnection(nil)
	if err := c.start(conn, config); err != nil {
		return nil, err
	}
	return c, nil
}

func newClientConnection(connector IClientConnector) *clientConnection {
	return &clientConnection{
		connector: connector,
		pending:   xsync.NewMapOf[uint64, *pendingReply](),
		events:    queue.NewLockFreeMPSC[common.Message](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnection)
// --------------------------------------------------------------------------

func (c *clientConnection) Connect(config common.ClientConfig) error {
	if c.connector == nil {
		return fmt.Errorf("no connector configured")
	}
	if c.conn != nil {
		return fmt.Errorf("already connected to %s", c.config.Transport.Endpoint)
	}
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second

	conn, err := c.connector.Connect(config.Transport.Endpoint, timeout)
	if err != nil {
		err = fmt.Errorf("failed to connect to %s: %w", config.Transport.Endpoint, err)
		c.setError(err)
		return err
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		err = fmt.Errorf("failed to upgrade connection to %s: %w", config.Transport.Endpoint, err)
		c.setError(err)
		return err
	}

	if err := c.start(conn, config); err != nil {
		conn.Close()
		c.setError(err)
		return err
	}

	Logger.Infof("Connected to %s using %s transport", config.Transport.Endpoint, c.connector.GetName())
	return nil
}

func (c *clientConnection) HasError() bool {
	return c.Err() != nil
}

func (c *clientConnection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *clientConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		if c.conn != nil {
			// best effort, buffered requests may still matter to the server
			c.writeMu.Lock()
			if c.Err() == nil {
				_ = c.writer.Flush()
			}
			c.writeMu.Unlock()

			err = c.conn.Close()
			<-c.readerDone
		}

		c.setError(transport.ErrConnClosed)
		c.events.Close()
		c.pending.Clear()
	})
	return err
}

func (c *clientConnection) SendRequest(req *common.Message) uint64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil || c.HasError() {
		return 0
	}

	seq := c.lastRequest.Add(1)
	// low 32 bits of 0 would read as "no request" in a cookie
	if uint32(seq) == 0 {
		seq = c.lastRequest.Add(1)
	}
	req.Kind = common.MsgKRequest
	req.Sequence = uint32(seq)

	// register before the write, the reader may see the answer right after it
	if req.ExpectsReply() || req.IsChecked() {
		entry := &pendingReply{
			seq:     seq,
			checked: req.IsChecked() && !req.ExpectsReply(),
			done:    make(chan struct{}),
		}
		c.pending.Store(seq, entry)

		// fail releases inflight under flightMu, an entry added after that would never resolve
		c.flightMu.Lock()
		if c.HasError() {
			c.flightMu.Unlock()
			c.pending.Delete(seq)
			return 0
		}
		c.inflight = append(c.inflight, entry)
		c.flightMu.Unlock()
	}

	data, err := c.serializer.Serialize(*req)
	if err != nil {
		// the sequence is burnt, the server never sees it
		Logger.Errorf("Failed to serialize request %d (%s): %v", seq, common.MajorCode(req.Opcode), err)
		c.setError(fmt.Errorf("failed to serialize request: %w", err))
		c.conn.Close()
		return seq
	}

	c.applyWriteDeadline()
	if err := writeFrame(c.writer, data); err != nil {
		c.setError(fmt.Errorf("failed to write request: %w", err))
		c.conn.Close()
		return seq
	}

	Logger.Debugf("Buffered request %d (%s)", seq, common.MajorCode(req.Opcode))
	return seq
}

func (c *clientConnection) Flush() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return transport.ErrConnClosed
	}
	if err := c.Err(); err != nil {
		return err
	}

	c.applyWriteDeadline()
	if err := c.writer.Flush(); err != nil {
		err = fmt.Errorf("failed to flush requests: %w", err)
		c.setError(err)
		c.conn.Close()
		return err
	}
	return nil
}

func (c *clientConnection) PollForEvent() *common.Message {
	ev, err := c.events.TryPop()
	if err != nil {
		return nil
	}
	return ev
}

func (c *clientConnection) WaitForEvent() (*common.Message, error) {
	if ev := c.PollForEvent(); ev != nil {
		return ev, nil
	}

	// nothing can arrive for requests that are still buffered
	if err := c.Flush(); err != nil {
		return nil, err
	}

	ev, err := c.events.Pop()
	if errors.Is(err, queue.ErrClosed) {
		if connErr := c.Err(); connErr != nil {
			return nil, connErr
		}
		return nil, transport.ErrConnClosed
	}
	return ev, err
}

func (c *clientConnection) QueueEvent(ev *common.Message) {
	if !c.events.Push(ev) {
		Logger.Warningf("Dropped event %s for sequence %d, event queue is closed", common.EventCode(ev.Opcode), ev.Sequence)
	}
}

func (c *clientConnection) PollForReply(seq uint64) (reply, errMsg *common.Message, done bool) {
	entry, ok := c.pending.Load(seq)
	if !ok {
		return nil, nil, true
	}

	if !entry.resolved() {
		// nothing can arrive for a request that is still buffered
		if err := c.Flush(); err != nil {
			return nil, nil, true
		}
		if !entry.resolved() {
			return nil, nil, false
		}
	}

	c.retrieve(entry)
	return entry.reply, entry.errMsg, true
}

func (c *clientConnection) WaitForReply(seq uint64) (reply, errMsg *common.Message, err error) {
	entry, ok := c.pending.Load(seq)
	if !ok {
		return nil, nil, nil
	}

	if !entry.resolved() {
		if err := c.Flush(); err != nil {
			return nil, nil, err
		}
		<-entry.done
	}

	c.retrieve(entry)
	if entry.reply == nil && entry.errMsg == nil && entry.lost != nil {
		return nil, nil, entry.lost
	}
	return entry.reply, entry.errMsg, nil
}

func (c *clientConnection) Discard(seq uint64) {
	if _, ok := c.pending.LoadAndDelete(seq); ok {
		Logger.Debugf("Discarded pending reply %d", seq)
	}
}

func (c *clientConnection) ForceCheck(seq uint64) (*common.Message, error) {
	entry, ok := c.pending.Load(seq)
	if !ok {
		if err := c.Err(); err != nil {
			return nil, err
		}
		return nil, transport.ErrNotPending
	}

	if !entry.resolved() {
		if c.lastRead.Load() < seq {
			// the reply to a later request proves that seq completed
			syncSeq := c.SendRequest(common.NewRequest(common.OpGetInputFocus, common.FlagExpectsReply, nil))
			if syncSeq == 0 {
				return nil, c.Err()
			}
			Logger.Debugf("Sent sync request %d to check request %d", syncSeq, seq)
			// retrieves only the sync entry, earlier replies stay pending
			if _, _, err := c.WaitForReply(syncSeq); err != nil {
				return nil, err
			}
		} else if err := c.Flush(); err != nil {
			return nil, err
		}
		<-entry.done
	}

	c.pending.Delete(seq)
	if entry.errMsg == nil && entry.lost != nil {
		return nil, entry.lost
	}
	return entry.errMsg, nil
}

func (c *clientConnection) CurrentSequence() uint64 {
	return c.lastRequest.Load()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// start initializes the buffers of an established connection and starts the reader
func (c *clientConnection) start(conn net.Conn, config common.ClientConfig) error {
	s, err := serializer.New(config.Transport.Serializer)
	if err != nil {
		return err
	}

	bufSize := config.RequestBufferSize
	if bufSize <= 0 {
		bufSize = defaultRequestBufferSize
	}

	c.config = config
	c.serializer = s
	c.conn = conn
	c.writer = bufio.NewWriterSize(conn, bufSize)
	c.readerDone = make(chan struct{})

	go c.readMessages()
	return nil
}

// applyWriteDeadline sets the write deadline if a timeout is configured,
// the caller must hold writeMu
func (c *clientConnection) applyWriteDeadline() {
	if c.config.TimeoutSecond > 0 {
		timeout := time.Duration(c.config.TimeoutSecond) * time.Second
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
}

// setError records the first failure of the connection
func (c *clientConnection) setError(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// retrieve removes a resolved entry. Entries of other requests stay pending
// until they are retrieved, discarded or the connection is closed.
func (c *clientConnection) retrieve(entry *pendingReply) {
	c.pending.Delete(entry.seq)
}

// readMessages reads messages in a loop and distributes them to pending
// entries or the event queue until the connection fails or is closed
func (c *clientConnection) readMessages() {
	defer close(c.readerDone)

	reader := bufio.NewReader(c.conn)
	buf := make([]byte, 4096)

	for {
		data, err := readFrame(reader, buf)
		if err != nil {
			c.fail(err)
			return
		}

		msg := &common.Message{}
		if err := c.serializer.Deserialize(data, msg); err != nil {
			c.fail(fmt.Errorf("malformed message: %w", err))
			return
		}

		current := c.lastRequest.Load()
		if current < common.Epoch && uint64(msg.Sequence) > current {
			c.fail(fmt.Errorf("server answered unsent sequence %d", msg.Sequence))
			return
		}
		seq := common.WidenSequence(msg.Sequence, current)

		switch msg.Kind {
		case common.MsgKReply, common.MsgKError:
			c.resolve(seq, msg)
		case common.MsgKEvent:
			c.resolveBefore(seq + 1)
			c.QueueEvent(msg)
		default:
			Logger.Warningf("Ignoring message of kind %s for sequence %d", msg.Kind, seq)
		}

		if seq > c.lastRead.Load() {
			c.lastRead.Store(seq)
		}
	}
}

// resolve hands a reply or error to the entry of seq. Every earlier unresolved entry
// is completed without a result, the server answers in request order.
func (c *clientConnection) resolve(seq uint64, msg *common.Message) {
	c.resolveBefore(seq)

	c.flightMu.Lock()
	var entry *pendingReply
	if len(c.inflight) > 0 && c.inflight[0].seq == seq {
		entry = c.inflight[0]
		c.inflight[0] = nil
		c.inflight = c.inflight[1:]
	}
	c.flightMu.Unlock()

	switch {
	case entry != nil && msg.Kind == common.MsgKError:
		entry.errMsg = msg
		close(entry.done)
	case entry != nil:
		entry.reply = msg
		close(entry.done)
	case msg.Kind == common.MsgKError:
		// error of an unchecked void request
		c.QueueEvent(msg)
	default:
		Logger.Warningf("Dropping reply for untracked sequence %d", seq)
	}
}

// resolveBefore completes all unresolved entries with a sequence lower than seq
func (c *clientConnection) resolveBefore(seq uint64) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	n := 0
	for n < len(c.inflight) && c.inflight[n].seq < seq {
		close(c.inflight[n].done)
		c.inflight[n] = nil
		n++
	}
	c.inflight = c.inflight[n:]
}

// fail marks the connection as broken and releases every waiter
func (c *clientConnection) fail(err error) {
	if c.closed.Load() {
		err = transport.ErrConnClosed
	} else {
		err = fmt.Errorf("connection lost: %w", err)
		Logger.Errorf("%v", err)
	}
	c.flightMu.Lock()
	c.setError(err)
	lost := c.Err()
	for _, entry := range c.inflight {
		entry.lost = lost
		close(entry.done)
	}
	c.inflight = nil
	c.flightMu.Unlock()

	c.events.Close()
}
