// Package seqnum implements wrap-around arithmetic for the 16-bit sequence
// numbers carried by reliable datagrams. Comparisons must go through wrapped
// distance, never naive <, or a counter that has wrapped past 65535 looks
// like it went backwards.
package seqnum

// Num is a 16-bit sequence number that wraps at 65536.
type Num uint16

// Window is half the sequence space: distances wider than this are treated
// as having wrapped the other way.
const Window = 1 << 15

// Distance returns the signed distance from a to b, accounting for wrap.
// A positive result means b is ahead of a.
func Distance(a, b Num) int32 {
	d := int32(b) - int32(a)
	switch {
	case d > Window:
		d -= 1 << 16
	case d < -Window:
		d += 1 << 16
	}
	return d
}

// LessThan reports whether a precedes b in sequence order, wrap-aware.
func LessThan(a, b Num) bool {
	return Distance(a, b) > 0
}

// InRange reports whether seq falls within [base, base+size) modulo 2^16.
func InRange(seq, base Num, size uint16) bool {
	d := Distance(base, seq)
	return d >= 0 && d < int32(size)
}

// Next returns the next sequence number after n, wrapping at 65536.
func Next(n Num) Num {
	return n + 1
}

// Add returns n advanced by delta positions, wrapping at 65536.
func Add(n Num, delta uint16) Num {
	return n + Num(delta)
}
