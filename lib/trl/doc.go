// Package trl is the request and reply layer of the xtrl client. It issues
// requests over a transport.IConnection, hands out a Cookie for each of them
// and correlates the replies and errors the server sends back.
//
// Every request call returns immediately with a Cookie. Requests are only
// buffered; the connection flushes them when the caller waits for something.
// The caller later presents the Cookie to retrieve the outcome:
//
//   - WaitReply blocks until the reply or error arrived. PollReply returns
//     iox.ErrWouldBlock instead of blocking, WaitReplyContext gives up when the
//     context is done. Discard drops the outcome.
//   - Check reports the completion status of a request sent with SendChecked.
//     It issues a GetInputFocus round trip if nothing later than the request
//     has been read yet.
//
// Errors of requests nobody waits for arrive in the event queue (PollForEvent,
// WaitForEvent) and are routed with HandleEvent.
//
// Error dispatch:
//
// Without an error handler a protocol error is fatal: it is logged with all
// of its fields and the exit hook (os.Exit by default) is called. Once a
// handler is installed with SetErrorHandler every error goes to it instead.
// The retrieval calls return ErrRequestFailed after dispatching.
//
// Strict mode:
//
// With ClientConfig.Strict every void request is sent checked and validated
// before the call returns. A failure is logged, put back into the event queue
// as a synthetic error event and the breakpoint hook is called.
//
// Sequence numbers:
//
// Cookies carry 32 bits, the connection counts in 64 bits. Widen reconstructs
// the full sequence relative to the current count; it assumes the request is
// less than 2^32 requests old.
//
// Usage Example:
//
//	conn := tcp.NewTCPConnection()
//	d, err := trl.OpenDisplay(config, conn)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer d.Close()
//
//	win, _ := d.CreateWindow(common.Root, 0, 0, 640, 480, 0)
//	d.MapWindow(win)
//
//	geometry, err := d.GetGeometryReply(d.GetGeometry(win))
package trl
