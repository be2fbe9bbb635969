// Package huffman holds the fixed prefix-code table of the NEF lossless bitstream.
//
// Every pixel is stored as <code><value>: code identifies the bit-length class of the
// pixel delta, value carries the delta itself in exactly class bits. The table assigns
// the shortest codes to the classes a typical sensor produces most often (deltas of
// 5 to 9 bits) and the longest to the rare ones (zero, one and 13/14-bit deltas).
//
// The table is compiled in, never mutated, and safe for concurrent use without locking.
package huffman

import "math/bits"

// MaxClasses is the number of bit-length classes the format supports. Deltas whose
// magnitude needs MaxClasses or more bits cannot be encoded.
const MaxClasses = 15

// Entry is a single row of the code table.
type Entry struct {
	// Class is the number of value bits that follow the code.
	Class uint8
	// Width is the number of bits in Code.
	Width uint8
	// Code is the prefix code, right-aligned.
	Code uint8
}

// entries is ordered by code, shortest first.
var entries = [MaxClasses]Entry{
	{Class: 7, Width: 2, Code: 0x00},

	{Class: 6, Width: 3, Code: 0x02},
	{Class: 8, Width: 3, Code: 0x03},
	{Class: 5, Width: 3, Code: 0x04},
	{Class: 9, Width: 3, Code: 0x05},

	{Class: 4, Width: 4, Code: 0x0c},
	{Class: 10, Width: 4, Code: 0x0d},

	{Class: 3, Width: 5, Code: 0x1c},
	{Class: 11, Width: 5, Code: 0x1d},

	{Class: 12, Width: 6, Code: 0x3c},
	{Class: 2, Width: 6, Code: 0x3d},
	{Class: 0, Width: 6, Code: 0x3e},

	{Class: 1, Width: 7, Code: 0x7e},

	{Class: 13, Width: 8, Code: 0xfe},
	{Class: 14, Width: 8, Code: 0xff},
}

// byClass maps a class to its position in entries.
var byClass = [MaxClasses]uint8{11, 12, 10, 7, 5, 3, 1, 0, 2, 4, 6, 8, 9, 13, 14}

// Lookup returns the table entry for a delta needing n bits.
//
// The second result is false when n is outside [0, MaxClasses).
func Lookup(n int) (Entry, bool) {
	if n < 0 || n >= MaxClasses {
		return Entry{}, false
	}

	return entries[byClass[n]], true
}

// BitsNeeded returns the class of a delta with the given magnitude: the bit length of
// the magnitude, or 0 for a zero delta.
//
// The sign lives in the top value bit (set for positive deltas), so no extra bit is
// added for it.
func BitsNeeded(magnitude uint16) int {
	return bits.Len16(magnitude)
}

// Entries returns a copy of the table ordered by code.
func Entries() []Entry {
	out := make([]Entry, MaxClasses)
	copy(out, entries[:])

	return out
}
