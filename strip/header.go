package strip

import (
	"fmt"
	"math"

	"github.com/arloliu/nefenc/endian"
	"github.com/arloliu/nefenc/errs"
	"github.com/arloliu/nefenc/format"
	"github.com/arloliu/nefenc/internal/bitpack"
	"github.com/arloliu/nefenc/lossless"
)

const (
	HeaderSize = 32 // fixed header size in bytes

	MagicStripV1 = 0xEC10 // MagicStripV1 identifies version 1 of the strip envelope.

	MagicMask    = 0xFFF0 // Mask for magic number (bits 4-15)
	ReservedMask = 0x000F // Mask for reserved bits (bits 0-3), must be 0

	MaxDimension = math.MaxUint32
)

// Header is the fixed-size header at the start of a strip.
//
// All fields are stored little-endian.
type Header struct {
	// Magic holds MagicStripV1. byte offset 0-1
	Magic uint16
	// Compression is the codec applied to the payload. byte offset 2
	Compression format.CompressionType
	// Columns is the grid width in samples. byte offset 4-7
	Columns uint32
	// Rows is the grid height in samples. byte offset 8-11
	Rows uint32
	// Seed is the starting predictor value the bitstream was encoded with. byte offset 12-13
	Seed uint16
	// PayloadLength is the stored (possibly compressed) payload size. byte offset 16-19
	PayloadLength uint32
	// BitstreamLength is the size of the bitstream after decompression. byte offset 20-23
	BitstreamLength uint32
	// Checksum is the xxHash64 of the bitstream. byte offset 24-31
	Checksum uint64
}

// Bytes serializes the header into a HeaderSize byte slice.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	engine := endian.GetLittleEndianEngine()
	engine.PutUint16(b[0:2], h.Magic)
	b[2] = uint8(h.Compression)
	engine.PutUint32(b[4:8], h.Columns)
	engine.PutUint32(b[8:12], h.Rows)
	engine.PutUint16(b[12:14], h.Seed)
	engine.PutUint32(b[16:20], h.PayloadLength)
	engine.PutUint32(b[20:24], h.BitstreamLength)
	engine.PutUint64(b[24:32], h.Checksum)

	return b
}

// Parse parses the header from the first HeaderSize bytes of data.
func (h *Header) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, got %d", errs.ErrInvalidStrip, HeaderSize, len(data))
	}

	engine := endian.GetLittleEndianEngine()
	h.Magic = engine.Uint16(data[0:2])
	h.Compression = format.CompressionType(data[2])
	h.Columns = engine.Uint32(data[4:8])
	h.Rows = engine.Uint32(data[8:12])
	h.Seed = engine.Uint16(data[12:14])
	h.PayloadLength = engine.Uint32(data[16:20])
	h.BitstreamLength = engine.Uint32(data[20:24])
	h.Checksum = engine.Uint64(data[24:32])

	return h.Validate()
}

// Validate checks the magic number, the reserved bits, the compression type, and that
// the bitstream length is one the grid can encode to.
func (h *Header) Validate() error {
	if h.Magic&MagicMask != MagicStripV1 {
		return fmt.Errorf("%w: bad magic 0x%04x", errs.ErrInvalidStrip, h.Magic)
	}

	if h.Magic&ReservedMask != 0 {
		return fmt.Errorf("%w: reserved bits set", errs.ErrInvalidStrip)
	}

	if !h.Compression.Valid() {
		return fmt.Errorf("%w: unknown compression %d", errs.ErrInvalidStrip, h.Compression)
	}

	if !bitstreamFits(h.Rows, h.Columns, uint64(h.BitstreamLength)) {
		return fmt.Errorf("%w: %d byte bitstream is longer than a %d x %d grid encodes to",
			errs.ErrInvalidStrip, h.BitstreamLength, h.Rows, h.Columns)
	}

	return nil
}

// bitstreamFits reports whether length is within the worst-case bitstream size of a
// rows x columns grid.
func bitstreamFits(rows, columns uint32, length uint64) bool {
	if length > math.MaxUint32 {
		return false
	}

	samples := uint64(rows) * uint64(columns)
	if samples > math.MaxUint32 {
		// the bound exceeds any length a header can hold
		return true
	}

	words := (samples*lossless.MaxBitsPerSample + bitpack.WordBits - 1) / bitpack.WordBits

	return length <= words*bitpack.WordBytes
}
