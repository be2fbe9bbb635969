// Package strip wraps an encoded bitstream in a small self-describing envelope so it
// can be handed between image-pipeline stages (worker processes, caches, queues)
// before it is spliced into a raw container.
//
// A strip is a 32-byte Header followed by the payload: the bitstream, optionally
// compressed with one of the codecs of package compress. The header records the grid
// geometry and predictor seed the bitstream was encoded with, plus an xxHash64 of the
// bitstream that Parse verifies.
//
//	data, err := strip.Marshal(strip.Strip{Columns: 6048, Rows: 4032, Seed: 0x800, Bitstream: bs},
//	    strip.WithCompression(format.CompressionS2))
//	s, err := strip.Parse(data)
package strip

import (
	"fmt"
	"math"

	"github.com/arloliu/nefenc/compress"
	"github.com/arloliu/nefenc/errs"
	"github.com/arloliu/nefenc/format"
	"github.com/arloliu/nefenc/internal/hash"
	"github.com/arloliu/nefenc/internal/options"
)

// Strip is an encoded grid together with the parameters it was encoded with.
type Strip struct {
	Columns   int
	Rows      int
	Seed      uint16
	Bitstream []byte
}

type config struct {
	compression format.CompressionType
}

// Option configures Marshal.
type Option = options.Option[*config]

// WithCompression sets the payload codec. The default is format.CompressionNone.
func WithCompression(c format.CompressionType) Option {
	return options.New(func(cfg *config) error {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown compression %s", errs.ErrInvalidStrip, c)
		}
		cfg.compression = c

		return nil
	})
}

// Marshal serializes s into a new byte slice.
func Marshal(s Strip, opts ...Option) ([]byte, error) {
	cfg := &config{compression: format.CompressionNone}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if s.Columns < 0 || s.Rows < 0 || uint64(s.Columns) > MaxDimension || uint64(s.Rows) > MaxDimension {
		return nil, fmt.Errorf("%w: %d rows x %d columns", errs.ErrInvalidDimensions, s.Rows, s.Columns)
	}

	if !bitstreamFits(uint32(s.Rows), uint32(s.Columns), uint64(len(s.Bitstream))) {
		return nil, fmt.Errorf("%w: %d byte bitstream is longer than a %d x %d grid encodes to",
			errs.ErrInvalidStrip, len(s.Bitstream), s.Rows, s.Columns)
	}

	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return nil, err
	}

	payload, err := codec.Compress(s.Bitstream)
	if err != nil {
		return nil, fmt.Errorf("compress strip payload: %w", err)
	}

	h := Header{
		Magic:           MagicStripV1,
		Compression:     cfg.compression,
		Columns:         uint32(s.Columns),
		Rows:            uint32(s.Rows),
		Seed:            s.Seed,
		PayloadLength:   uint32(len(payload)),
		BitstreamLength: uint32(len(s.Bitstream)),
		Checksum:        hash.Checksum(s.Bitstream),
	}

	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, h.Bytes()...)
	out = append(out, payload...)

	return out, nil
}

// Parse decodes a strip produced by Marshal.
//
// The returned Bitstream never aliases data. Parse fails with errs.ErrInvalidStrip on
// a malformed envelope and errs.ErrChecksumMismatch when the bitstream was altered.
func Parse(data []byte) (Strip, error) {
	var h Header
	if err := h.Parse(data); err != nil {
		return Strip{}, err
	}

	payload := data[HeaderSize:]
	if uint64(len(payload)) != uint64(h.PayloadLength) {
		return Strip{}, fmt.Errorf("%w: payload is %d bytes, header says %d",
			errs.ErrInvalidStrip, len(payload), h.PayloadLength)
	}

	codec, err := compress.GetCodec(h.Compression)
	if err != nil {
		return Strip{}, fmt.Errorf("%w: %w", errs.ErrInvalidStrip, err)
	}

	if uint64(h.BitstreamLength) > math.MaxInt {
		return Strip{}, fmt.Errorf("%w: %d byte bitstream does not fit in memory", errs.ErrInvalidStrip, h.BitstreamLength)
	}

	// Validate bounds BitstreamLength by the geometry, so this never allocates more
	// than the grid can encode to.
	bitstream, err := codec.DecompressSized(payload, int(h.BitstreamLength))
	if err != nil {
		return Strip{}, fmt.Errorf("%w: %w", errs.ErrInvalidStrip, err)
	}

	if sum := hash.Checksum(bitstream); sum != h.Checksum {
		return Strip{}, fmt.Errorf("%w: got 0x%016x, want 0x%016x", errs.ErrChecksumMismatch, sum, h.Checksum)
	}

	if h.Compression == format.CompressionNone {
		bitstream = append([]byte(nil), bitstream...)
	}

	return Strip{
		Columns:   int(h.Columns),
		Rows:      int(h.Rows),
		Seed:      h.Seed,
		Bitstream: bitstream,
	}, nil
}
