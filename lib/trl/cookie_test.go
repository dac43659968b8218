package trl

import (
	"testing"
)

func TestWiden(t *testing.T) {
	tests := []struct {
		name     string
		cookie   uint32
		current  uint64
		expected uint64
	}{
		{"first request", 1, 1, 1},
		{"older request", 3, 10, 3},
		{"second epoch", 5, 0x1_0000_0005, 0x1_0000_0005},
		{"previous epoch", 0xFFFFFFFF, 0x1_0000_0005, 0xFFFFFFFF},
		{"same epoch", 2, 0x1_0000_0005, 0x1_0000_0002},
		{"end of epoch", 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cookie{Sequence: tt.cookie}.Widen(tt.current)
			if got.Sequence != tt.expected {
				t.Errorf("Widen(%d, 0x%x): expected 0x%x, got 0x%x", tt.cookie, tt.current, tt.expected, got.Sequence)
			}
		})
	}
}

func TestWidenRecentRequests(t *testing.T) {
	currents := []uint64{1 << 32, 1<<32 + 1, 1<<33 + 12345, 0x7_FFFF_FFFF, 1 << 40}
	distances := []uint64{0, 1, 2, 1000, 1<<31 + 7, 1<<32 - 1}

	for _, current := range currents {
		for _, k := range distances {
			seq := current - k
			got := Cookie{Sequence: uint32(seq)}.Widen(current).Sequence
			if got != seq {
				t.Errorf("Widen(0x%x, 0x%x): expected 0x%x, got 0x%x", uint32(seq), current, seq, got)
			}
			if got > current {
				t.Errorf("Widened 0x%x beyond current 0x%x", got, current)
			}
		}
	}
}

func TestWidenFutureCookiePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected a panic for a cookie newer than the current count")
		}
	}()
	Cookie{Sequence: 6}.Widen(5)
}

func TestCookieIsZero(t *testing.T) {
	if !(Cookie{}).IsZero() {
		t.Errorf("Expected the zero cookie to be zero")
	}
	if (Cookie{Sequence: 1}).IsZero() {
		t.Errorf("Expected cookie 1 not to be zero")
	}
}
