// Package errs defines the sentinel errors returned by nefenc.
//
// Callers should compare with errors.Is, since most errors are wrapped with
// additional context such as the row and column where encoding stopped.
package errs

import "errors"

var (
	// ErrSourceBufferTooSmall is returned before any sample is read when the
	// source buffer holds fewer than rows*columns 16-bit samples.
	ErrSourceBufferTooSmall = errors.New("source buffer too small")

	// ErrNoHuffTableEntry is returned when a sample's delta needs 15 or more bits,
	// which is outside the 14-bit dynamic range of the format.
	ErrNoHuffTableEntry = errors.New("no huffman table entry for delta")

	// ErrOutputBufferTooSmall is returned at the start of a row when the remaining
	// output capacity is below the safety margin.
	ErrOutputBufferTooSmall = errors.New("output buffer too small")

	// ErrInvalidDimensions is returned when rows or columns are negative.
	ErrInvalidDimensions = errors.New("invalid grid dimensions")

	// ErrInvalidStrip is returned when a strip envelope cannot be parsed.
	ErrInvalidStrip = errors.New("invalid strip")

	// ErrChecksumMismatch is returned when a strip payload does not match its checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidWorkerCount is returned when a batch encoder is configured with
	// fewer than one worker.
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// Legacy result codes used by the C entry point of the encoder. A successful
// encode returned the byte count, so every failure is negative.
const (
	CodeSourceBufferTooSmall = -1
	CodeNoHuffTableEntry     = -2
	CodeOutputBufferTooSmall = -3
)

// Code maps an encode error to its legacy negative result code.
//
// It returns 0 for a nil error and -127 for errors that have no legacy code.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrSourceBufferTooSmall):
		return CodeSourceBufferTooSmall
	case errors.Is(err, ErrNoHuffTableEntry):
		return CodeNoHuffTableEntry
	case errors.Is(err, ErrOutputBufferTooSmall):
		return CodeOutputBufferTooSmall
	default:
		return -127
	}
}
