// Package lossless encodes Bayer sensor samples into the NEF lossless bitstream.
//
// Every sample is predicted from the nearest already-coded sample of the same color
// (see internal/predictor), and the signed difference is written as a prefix code
// for its bit length (see package huffman) followed by the difference bits. Bits are
// packed MSB-first into big-endian 32-bit words.
//
// The encoder writes into a caller-supplied buffer and never grows it:
//
//	enc, _ := lossless.NewEncoder()
//	dst := make([]byte, lossless.RequiredOutputSize(rows, columns))
//	n, err := enc.Encode(lossless.Request{
//	    Columns: columns,
//	    Rows:    rows,
//	    Samples: samples,
//	    Seed:    lossless.DefaultSeed,
//	    Dst:     dst,
//	})
//	bitstream := dst[:n]
//
// An Encoder holds configuration only. Each Encode call owns its predictor and bit
// writer, so one Encoder may be used from many goroutines to encode different images
// at the same time.
package lossless

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/arloliu/nefenc/endian"
	"github.com/arloliu/nefenc/errs"
	"github.com/arloliu/nefenc/huffman"
	"github.com/arloliu/nefenc/internal/bitpack"
	"github.com/arloliu/nefenc/internal/options"
	"github.com/arloliu/nefenc/internal/pool"
	"github.com/arloliu/nefenc/internal/predictor"
)

const (
	// OutputSafetyMargin is the output capacity that must remain before each row is
	// encoded. No row of a supported sensor expands anywhere near this much.
	OutputSafetyMargin = 1024 * 1024 // 1MiB

	// DefaultSeed is the starting predictor value most cameras store in their
	// linearization table.
	DefaultSeed uint16 = 0x800

	// BytesPerSample is the size of a source sample.
	BytesPerSample = 2

	// MaxBitsPerSample is the most a sample can cost: the longest class code (8 bits)
	// plus the longest difference (14 bits).
	MaxBitsPerSample = 8 + huffman.MaxClasses - 1

	// maxSamples keeps every size computed from a grid within an int.
	maxSamples = (math.MaxInt - OutputSafetyMargin - bitpack.WordBits) / MaxBitsPerSample
)

// Request describes one grid to encode.
type Request struct {
	// Columns is the grid width in samples.
	Columns int
	// Rows is the grid height in samples.
	Rows int
	// Samples holds at least Rows*Columns samples in row-major order.
	Samples []uint16
	// Seed is the starting value of every predictor slot.
	Seed uint16
	// Dst receives the bitstream. Its length is the output capacity.
	Dst []byte
}

// ByteRequest is a Request whose samples are still raw bytes.
type ByteRequest struct {
	Columns int
	Rows    int
	// Source holds at least Rows*Columns*2 bytes of samples in the byte order
	// configured on the Encoder.
	Source []byte
	Seed   uint16
	Dst    []byte
}

// Encoder encodes sample grids. The zero value is not usable; create one with
// NewEncoder.
type Encoder struct {
	logger       *slog.Logger
	sampleEngine endian.EndianEngine
}

// NewEncoder creates an Encoder.
//
// Available options:
//   - WithLogger(logger)
//   - WithLittleEndianSamples() / WithBigEndianSamples()
func NewEncoder(opts ...EncoderOption) (*Encoder, error) {
	cfg := newEncoderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Encoder{
		logger:       cfg.logger,
		sampleEngine: cfg.sampleEngine,
	}, nil
}

// MaxBitstreamSize returns the largest bitstream a rows x columns grid can encode to,
// reached when every difference needs 14 bits.
func MaxBitstreamSize(rows, columns int) int {
	bits := rows * columns * MaxBitsPerSample

	return (bits + bitpack.WordBits - 1) / bitpack.WordBits * bitpack.WordBytes
}

// RequiredOutputSize returns the output capacity that is always enough for a grid:
// the worst-case bitstream plus the row safety margin.
//
// Camera pipelines often size the buffer as the raw sample size plus the margin.
// That holds for real sensor data but not for noise spanning the full 14-bit range,
// which costs up to MaxBitsPerSample bits per sample.
func RequiredOutputSize(rows, columns int) int {
	return MaxBitstreamSize(rows, columns) + OutputSafetyMargin
}

// checkDimensions rejects negative grids and grids too large to size.
func checkDimensions(rows, columns int) error {
	if rows < 0 || columns < 0 || (rows > 0 && columns > maxSamples/rows) {
		return fmt.Errorf("%w: %d rows x %d columns", errs.ErrInvalidDimensions, rows, columns)
	}

	return nil
}

// Encode encodes req.Samples into req.Dst and returns the bitstream length in bytes.
//
// Errors, all terminal and leaving req.Dst undefined:
//   - errs.ErrSourceBufferTooSmall before any sample is read
//   - errs.ErrOutputBufferTooSmall before a row when less than OutputSafetyMargin
//     bytes remain, or if the bitstream overruns req.Dst
//   - errs.ErrNoHuffTableEntry at the first delta needing 15 or more bits
func (e *Encoder) Encode(req Request) (int, error) {
	if err := checkDimensions(req.Rows, req.Columns); err != nil {
		return 0, err
	}

	need := req.Rows * req.Columns * BytesPerSample
	if have := len(req.Samples) * BytesPerSample; have < need {
		return 0, fmt.Errorf("%w: have %d bytes, need %d", errs.ErrSourceBufferTooSmall, have, need)
	}

	return e.encode(req)
}

// EncodeBytes decodes raw sample bytes with the configured byte order and encodes
// them like Encode.
func (e *Encoder) EncodeBytes(req ByteRequest) (int, error) {
	if err := checkDimensions(req.Rows, req.Columns); err != nil {
		return 0, err
	}

	need := req.Rows * req.Columns * BytesPerSample
	if len(req.Source) < need {
		return 0, fmt.Errorf("%w: have %d bytes, need %d", errs.ErrSourceBufferTooSmall, len(req.Source), need)
	}

	samples, cleanup := pool.GetUint16Slice(req.Rows * req.Columns)
	defer cleanup()
	endian.DecodeSamples(e.sampleEngine, samples, req.Source)

	return e.encode(Request{
		Columns: req.Columns,
		Rows:    req.Rows,
		Samples: samples,
		Seed:    req.Seed,
		Dst:     req.Dst,
	})
}

// EncodeToBuffer encodes req.Samples into a pooled buffer of RequiredOutputSize
// bytes and returns a copy of exactly the bitstream. req.Dst is ignored.
func (e *Encoder) EncodeToBuffer(req Request) ([]byte, error) {
	if err := checkDimensions(req.Rows, req.Columns); err != nil {
		return nil, err
	}

	buf := pool.GetOutputBuffer(RequiredOutputSize(req.Rows, req.Columns))
	defer pool.PutOutputBuffer(buf)

	req.Dst = buf.Bytes()
	n, err := e.Encode(req)
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, req.Dst[:n])

	return out, nil
}

func (e *Encoder) encode(req Request) (int, error) {
	e.logger.Debug("encode started",
		slog.Int("rows", req.Rows),
		slog.Int("columns", req.Columns),
		slog.Int("seed", int(req.Seed)),
		slog.Int("capacity", len(req.Dst)),
	)

	pred := predictor.New(req.Seed)
	w := bitpack.NewWriter(req.Dst)

	idx := 0
	for row := 0; row < req.Rows; row++ {
		if avail := w.Available(); avail < OutputSafetyMargin {
			return 0, fmt.Errorf("%w: %d bytes left before row %d, need %d",
				errs.ErrOutputBufferTooSmall, avail, row, OutputSafetyMargin)
		}

		for col := 0; col < req.Columns; col++ {
			sample := req.Samples[idx]
			idx++

			ref := pred.Reference(row, col)

			var magnitude uint16
			negative := sample < ref
			if negative {
				magnitude = ref - sample
			} else {
				magnitude = sample - ref
			}

			class := huffman.BitsNeeded(magnitude)
			entry, ok := huffman.Lookup(class)
			if !ok {
				return 0, fmt.Errorf("%w: row %d, column %d: sample 0x%04x, reference 0x%04x needs %d bits",
					errs.ErrNoHuffTableEntry, row, col, sample, ref, class)
			}

			value, delta := magnitude, magnitude
			if negative {
				value = uint16(1)<<class - 1 - magnitude
				delta = -magnitude
			}

			pred.Update(row, col, delta)

			w.WriteBits(int(entry.Width), uint32(entry.Code))
			w.WriteBits(class, uint32(value))
		}
	}

	n := w.Flush()
	if err := w.Err(); err != nil {
		return 0, fmt.Errorf("%w: bitstream exceeds %d bytes", errs.ErrOutputBufferTooSmall, len(req.Dst))
	}

	e.logger.Debug("encode finished",
		slog.Int("bytes", n),
		slog.Int("samples", req.Rows*req.Columns),
	)

	return n, nil
}
