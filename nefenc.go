// Package nefenc encodes Bayer raw sensor samples into the Nikon NEF lossless
// compressed bitstream.
//
// The bitstream stores, for every sample in row-major order, a prefix code for the
// bit length of the difference to the nearest same-color sample, followed by the
// difference bits. It is written into a caller-supplied buffer and is meant to be
// spliced into the image-data region of a NEF container by the caller.
//
// # Basic Usage
//
//	dst := make([]byte, nefenc.RequiredOutputSize(rows, columns))
//	n, err := nefenc.Encode(columns, rows, samples, nefenc.DefaultSeed, dst)
//	if err != nil {
//	    return err
//	}
//	bitstream := dst[:n]
//
// # Package Structure
//
// This package provides convenient top-level wrappers. For options and byte-level
// input use package lossless; to encode many frames at once use package batch; to
// hand bitstreams between pipeline stages use package strip.
package nefenc

import (
	"context"

	"github.com/arloliu/nefenc/batch"
	"github.com/arloliu/nefenc/lossless"
)

// DefaultSeed is the predictor seed used by most camera models.
const DefaultSeed = lossless.DefaultSeed

var defaultEncoder, _ = lossless.NewEncoder()

// NewEncoder creates an encoder with custom options.
//
// Available options:
//   - lossless.WithLogger(logger)
//   - lossless.WithLittleEndianSamples() / lossless.WithBigEndianSamples()
func NewEncoder(opts ...lossless.EncoderOption) (*lossless.Encoder, error) {
	return lossless.NewEncoder(opts...)
}

// Encode encodes a rows x columns grid of samples into dst with the default encoder
// and returns the bitstream length.
//
// dst must keep at least lossless.OutputSafetyMargin bytes free before every row;
// RequiredOutputSize is always large enough.
func Encode(columns, rows int, samples []uint16, seed uint16, dst []byte) (int, error) {
	return defaultEncoder.Encode(lossless.Request{
		Columns: columns,
		Rows:    rows,
		Samples: samples,
		Seed:    seed,
		Dst:     dst,
	})
}

// RequiredOutputSize returns an output capacity that is always enough for a grid.
func RequiredOutputSize(rows, columns int) int {
	return lossless.RequiredOutputSize(rows, columns)
}

// EncodeFrames encodes independent frames concurrently and returns the results in
// input order.
func EncodeFrames(ctx context.Context, frames []batch.Frame, opts ...batch.Option) ([]batch.Result, error) {
	enc, err := batch.NewEncoder(opts...)
	if err != nil {
		return nil, err
	}

	return enc.Encode(ctx, frames)
}
