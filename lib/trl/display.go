package trl

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/xtrl/rpc/common"
	"github.com/ValentinKolb/xtrl/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"os"
)

var Logger = logger.GetLogger("trl")

var (
	// ErrRequestFailed is returned when the server answered a request with an
	// error. The error has already been passed to the error dispatcher.
	ErrRequestFailed = errors.New("request failed")

	// ErrNoReply is returned when nothing will arrive for a cookie, because it was
	// already retrieved, checked, discarded or never expected a reply.
	ErrNoReply = errors.New("no reply for cookie")
)

// defaultResourceBase is the first resource id handed out by GenerateID
const defaultResourceBase uint32 = 0x00200000

// ErrorHandler receives protocol errors once installed with SetErrorHandler.
// The error is only valid for the duration of the call.
type ErrorHandler func(d *Display, e *common.GenericError)

// Display is a client session on one display connection. It issues requests,
// hands out cookies and correlates replies and errors with them.
//
// A Display is driven by one goroutine at a time, it adds no locking of its own.
type Display struct {
	conn   transport.IConnection
	strict bool

	handler    ErrorHandler
	exit       func(code int)
	breakpoint func()

	resourceBase uint32
	nextResource uint32

	metrics *displayMetrics
}

// displayMetrics holds the metric set of one display
type displayMetrics struct {
	set           *metrics.Set
	voidRequests  *metrics.Counter
	replyRequests *metrics.Counter
	replies       *metrics.Counter
	errHandler    *metrics.Counter
	errFatal      *metrics.Counter
	errChecked    *metrics.Counter
	waitDuration  *metrics.Histogram
}

func newDisplayMetrics() *displayMetrics {
	set := metrics.NewSet()
	return &displayMetrics{
		set:           set,
		voidRequests:  set.NewCounter(`xtrl_requests_total{kind="void"}`),
		replyRequests: set.NewCounter(`xtrl_requests_total{kind="reply"}`),
		replies:       set.NewCounter(`xtrl_replies_total`),
		errHandler:    set.NewCounter(`xtrl_errors_total{path="handler"}`),
		errFatal:      set.NewCounter(`xtrl_errors_total{path="fatal"}`),
		errChecked:    set.NewCounter(`xtrl_errors_total{path="checked"}`),
		waitDuration:  set.NewHistogram(`xtrl_wait_duration_seconds`),
	}
}

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

// OpenDisplay connects conn with the given configuration and returns a new display.
// A failure to connect is returned as error; the connection is unusable afterwards.
func OpenDisplay(config common.ClientConfig, conn transport.IConnection) (*Display, error) {
	if conn == nil {
		return nil, fmt.Errorf("no connection provided")
	}
	if err := conn.Connect(config); err != nil {
		return nil, fmt.Errorf("failed to open display: %w", err)
	}

	d := NewDisplay(conn, config)
	Logger.Infof("Opened display on %s (strict mode: %t)", config.Transport.Endpoint, config.Strict)
	return d, nil
}

// NewDisplay creates a display on an already connected connection
func NewDisplay(conn transport.IConnection, config common.ClientConfig) *Display {
	base := config.ResourceBase
	if base == 0 {
		base = defaultResourceBase
	}

	return &Display{
		conn:         conn,
		strict:       config.Strict,
		exit:         os.Exit,
		breakpoint:   func() {},
		resourceBase: base,
		metrics:      newDisplayMetrics(),
	}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Conn returns the underlying connection
func (d *Display) Conn() transport.IConnection {
	return d.conn
}

// Strict returns true if every void request is checked synchronously
func (d *Display) Strict() bool {
	return d.strict
}

// HasError returns true once the connection is unusable
func (d *Display) HasError() bool {
	return d.conn.HasError()
}

// CurrentSequence returns the full sequence of the last request sent
func (d *Display) CurrentSequence() uint64 {
	return d.conn.CurrentSequence()
}

// Flush writes all buffered requests to the server
func (d *Display) Flush() error {
	return d.conn.Flush()
}

// Close closes the connection, pending replies are released
func (d *Display) Close() error {
	return d.conn.Close()
}

// GenerateID returns a new client side resource id
func (d *Display) GenerateID() uint32 {
	d.nextResource++
	return d.resourceBase + d.nextResource
}

// WriteMetrics writes the display's metrics in Prometheus text format to w
func (d *Display) WriteMetrics(w io.Writer) {
	d.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Hooks
// --------------------------------------------------------------------------

// SetExitFunc replaces the function called when an error arrives without an
// error handler. It defaults to os.Exit.
func (d *Display) SetExitFunc(exit func(code int)) {
	if exit == nil {
		panic("trl: nil exit function")
	}
	d.exit = exit
}

// SetBreakpoint sets the hook called after strict mode reported an error.
// nil restores the default, which does nothing.
func (d *Display) SetBreakpoint(breakpoint func()) {
	if breakpoint == nil {
		breakpoint = func() {}
	}
	d.breakpoint = breakpoint
}

// --------------------------------------------------------------------------
// Preconditions
// --------------------------------------------------------------------------

// mustBeOpen panics on a nil display
func (d *Display) mustBeOpen() {
	if d == nil || d.conn == nil {
		panic("trl: nil display")
	}
}

// cookieUsable checks a cookie presented for retrieval or checking. Cookie 0 on a
// healthy connection is a caller bug and panics. On a broken connection cookie 0
// is what every request returned, so the connection error is reported instead.
func (d *Display) cookieUsable(c Cookie) error {
	d.mustBeOpen()
	if !c.IsZero() {
		return nil
	}
	if err := d.conn.Err(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	panic("trl: cookie 0 does not refer to a request")
}
