package trl

import "github.com/ValentinKolb/xtrl/rpc/common"

// Cookie is the correlation token returned by every request call. It carries
// the low 32 bits of the request's sequence number. A Cookie with sequence 0
// stands for "no pending request" and is returned if the connection is broken.
type Cookie struct {
	Sequence uint32
}

// WideCookie is a Cookie widened to the full 64-bit request count of its connection
type WideCookie struct {
	Sequence uint64
}

// IsZero returns true if the cookie does not refer to a request
func (c Cookie) IsZero() bool {
	return c.Sequence == 0
}

// Widen reconstructs the full sequence of the cookie given the connection's
// current request count. A cookie can only refer to a request already issued,
// so the result never exceeds current.
//
// Cookies older than one full wraparound (2^32 requests) are ambiguous and
// are widened into the most recent epoch.
func (c Cookie) Widen(current uint64) WideCookie {
	return WideCookie{Sequence: common.WidenSequence(c.Sequence, current)}
}

// Widen widens the cookie against the display's connection
func (d *Display) Widen(c Cookie) WideCookie {
	return c.Widen(d.conn.CurrentSequence())
}
