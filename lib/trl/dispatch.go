package trl

import "github.com/ValentinKolb/xtrl/rpc/common"

// SetErrorHandler installs h as the display's error handler, replacing any
// earlier one. Once a handler is installed the display never falls back to
// the fatal default again. A nil handler panics.
func (d *Display) SetErrorHandler(h ErrorHandler) {
	d.mustBeOpen()
	if h == nil {
		panic("trl: nil error handler")
	}
	d.handler = h
}

// Dispatch routes a protocol error. With a handler installed the error is passed
// to it. Without one, the error is logged with all of its fields and the exit
// hook is called, except for the "Success" code which is ignored.
func (d *Display) Dispatch(e *common.GenericError) {
	d.mustBeOpen()

	if d.handler != nil {
		d.metrics.errHandler.Inc()
		d.handler(d, e)
		return
	}

	if e.ErrorCode == common.ErrSuccess {
		return
	}

	d.metrics.errFatal.Inc()
	Logger.Errorf("Fatal protocol error, no error handler installed: %s", e.Describe())
	d.exit(1)
}
