// Package endian provides byte order utilities for the sample input and the
// bitstream output of nefenc.
//
// The encoded bitstream is always stored as big-endian 32-bit words, whatever the
// host byte order is. Raw sample buffers handed over by an image pipeline are
// usually little-endian (numpy, TIFF strips written on x86), but some sources
// deliver big-endian samples, so the sample byte order is configurable.
//
//	engine := endian.GetBigEndianEngine()
//	engine.PutUint32(dst[pos:], word)
//
// All functions and methods in this package are safe for concurrent use.
// The returned EndianEngine instances are immutable and stateless.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine used for bitstream words.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// DecodeSamples converts raw sample bytes into 16-bit samples using engine.
//
// It fills min(len(dst), len(src)/2) samples and returns that count. A trailing
// odd byte in src is ignored.
func DecodeSamples(engine EndianEngine, dst []uint16, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := range n {
		dst[i] = engine.Uint16(src[2*i:])
	}

	return n
}

// AppendSamples appends samples to dst as raw bytes using engine.
func AppendSamples(engine EndianEngine, dst []byte, samples []uint16) []byte {
	for _, s := range samples {
		dst = engine.AppendUint16(dst, s)
	}

	return dst
}
