// Package seq implements modular arithmetic over 32-bit sequence numbers
// as used by the segment header's seq_number and ack_number fields.
//
// All comparisons are defined in terms of signed 32-bit subtraction so that
// wraparound at 2^32 behaves the same way it does for TCP sequence numbers:
// a number is "newer than" another if the signed difference is positive.
package seq

import "fmt"

// Value is a 32-bit sequence number. It wraps modulo 2^32.
type Value uint32

// Size is a count of bytes occupied on the sequence number line.
type Size uint32

// Add returns v advanced by n bytes, wrapping around 2^32 as needed.
func (v Value) Add(n Size) Value {
	return v + Value(n)
}

// Diff returns the signed distance from u to v, i.e. the Size such that
// u.Add(Diff(v, u)) == v when v is newer than or equal to u.
// The result is only meaningful for values within 2^31 of each other,
// matching the TCP sequence space assumption.
func Diff(v, u Value) Size {
	return Size(v - u)
}

// LessThan reports whether v is strictly older than u, i.e. u is newer
// than v: v < u iff int32(u-v) > 0. Two values exactly 2^31 apart are
// not ordered either way.
func (v Value) LessThan(u Value) bool {
	return int32(u-v) > 0
}

// LessThanEq reports whether v is older than or equal to u.
func (v Value) LessThanEq(u Value) bool {
	return v == u || v.LessThan(u)
}

// GreaterThan reports whether v is strictly newer than u.
func (v Value) GreaterThan(u Value) bool {
	return u.LessThan(v)
}

// GreaterThanEq reports whether v is newer than or equal to u.
func (v Value) GreaterThanEq(u Value) bool {
	return v == u || v.GreaterThan(u)
}

// InWindowInclusive reports whether v falls within the closed window
// [lo, lo+size] on the sequence number line.
func InWindowInclusive(v, lo Value, size Size) bool {
	return Diff(v, lo) <= Size(size)
}

func (v Value) String() string {
	return fmt.Sprintf("seq(%d)", uint32(v))
}

func (s Size) String() string {
	return fmt.Sprintf("size(%d)", uint32(s))
}
