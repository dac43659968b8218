package common

import "fmt"

// Epoch is the number of sequence values carried on the wire before they wrap
const Epoch uint64 = 1 << 32

// WidenSequence reconstructs the full 64-bit sequence of a request from the
// 32-bit value on the wire and the connection's current count of issued
// requests. A request can only be one that was already issued, so if
// splicing seq into current yields a value past current it belongs to the
// previous epoch.
//
// Values older than one full epoch cannot be told apart from the current
// epoch and are not supported.
func WidenSequence(seq uint32, current uint64) uint64 {
	wide := current&^(Epoch-1) | uint64(seq)
	if wide > current {
		if current < Epoch {
			panic(fmt.Sprintf("sequence %d was never issued (current %d)", seq, current))
		}
		wide -= Epoch
	}
	return wide
}
