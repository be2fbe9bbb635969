// Package bitpack packs variable-width bit fields into the 32-bit big-endian words of
// the NEF lossless bitstream.
package bitpack

import (
	"errors"

	"github.com/arloliu/nefenc/endian"
)

const (
	// WordBits is the size of a bitstream word.
	WordBits = 32
	// WordBytes is the size of a bitstream word in bytes.
	WordBytes = WordBits / 8
	// MaxBitsPerWrite is the largest field WriteBits accepts in one call.
	MaxBitsPerWrite = WordBits - 1
)

// ErrShortBuffer is recorded when a completed word does not fit the destination.
var ErrShortBuffer = errors.New("bitpack: destination buffer too short")

// Writer accumulates bits MSB-first and stores each completed word into a
// caller-supplied buffer in big-endian order.
//
// A Writer never grows its destination. When a word does not fit, it is dropped and
// the Writer records ErrShortBuffer, which Err reports; the bytes already stored stay
// valid. A Writer is not safe for concurrent use.
type Writer struct {
	word   uint32 // pending bits, right-aligned
	nbits  int    // number of valid bits in word
	stored int    // bytes stored into dst
	err    error

	dst    []byte
	engine endian.EndianEngine
}

// NewWriter returns a Writer that stores words into dst starting at offset 0.
func NewWriter(dst []byte) *Writer {
	return &Writer{
		dst:    dst,
		engine: endian.GetBigEndianEngine(),
	}
}

// WriteBits appends the low count bits of value, most significant bit first.
//
// count must be in [0, MaxBitsPerWrite]. A field that does not fit the current word
// fills it, the word is stored, and the remainder starts a fresh word.
func (w *Writer) WriteBits(count int, value uint32) {
	left := count
	for left > 0 {
		n := min(left, WordBits-w.nbits)

		w.word <<= n
		w.word |= (value >> (left - n)) & (uint32(1)<<n - 1)
		w.nbits += n

		if w.nbits == WordBits {
			w.storeWord()
		}

		left -= n
	}
}

func (w *Writer) storeWord() {
	if w.stored+WordBytes > len(w.dst) {
		if w.err == nil {
			w.err = ErrShortBuffer
		}
	} else {
		w.engine.PutUint32(w.dst[w.stored:], w.word)
		w.stored += WordBytes
	}

	w.word = 0
	w.nbits = 0
}

// Flush pads the pending word with zero bits, stores it, and returns the final byte
// count.
//
// Nothing is stored when no bits are pending. The count excludes the whole padding
// bytes (padding bits / 8, truncated), so up to 7 padding bits may still be counted
// when the payload does not end on a byte boundary. Decoders stop on the known pixel
// count, not on this length.
func (w *Writer) Flush() int {
	if w.nbits > 0 {
		pad := WordBits - w.nbits
		w.WriteBits(pad, 0)
		if w.err == nil {
			w.stored -= pad / 8
		}
	}

	return w.stored
}

// Len returns the number of bytes stored so far.
func (w *Writer) Len() int {
	return w.stored
}

// Available returns the destination capacity left after the stored bytes.
func (w *Writer) Available() int {
	return len(w.dst) - w.stored
}

// Pending returns the number of bits waiting in the current word.
func (w *Writer) Pending() int {
	return w.nbits
}

// Err returns ErrShortBuffer if a word was dropped, nil otherwise.
func (w *Writer) Err() error {
	return w.err
}
