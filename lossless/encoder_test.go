package lossless

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/nefenc/endian"
	"github.com/arloliu/nefenc/errs"
)

func newTestEncoder(t testing.TB, opts ...EncoderOption) *Encoder {
	t.Helper()

	enc, err := NewEncoder(opts...)
	require.NoError(t, err)

	return enc
}

func flatGrid(rows, columns int, value uint16) []uint16 {
	samples := make([]uint16, rows*columns)
	for i := range samples {
		samples[i] = value
	}

	return samples
}

// bayerGrid produces a smooth 14-bit gradient with per-channel offsets and noise,
// similar to a real sensor readout.
func bayerGrid(rng *rand.Rand, rows, columns int) []uint16 {
	offsets := [2][2]int{{600, 1800}, {1800, 900}}
	samples := make([]uint16, rows*columns)
	for row := range rows {
		for col := range columns {
			v := offsets[row&1][col&1] + row*7 + col*3 + rng.Intn(64) - 32
			samples[row*columns+col] = uint16(min(max(v, 0), 0x3FFF))
		}
	}

	return samples
}

// worstCaseGrid alternates 2x2 blocks of 0 and 0x3FFF so that, with seed 0, every
// sample differs from its reference by 0x3FFF and costs MaxBitsPerSample bits.
func worstCaseGrid(rows, columns int) []uint16 {
	samples := make([]uint16, rows*columns)
	for row := range rows {
		for col := range columns {
			if ((row>>1)+(col>>1))%2 == 0 {
				samples[row*columns+col] = 0x3FFF
			}
		}
	}

	return samples
}

func noiseGrid(rng *rand.Rand, rows, columns int) []uint16 {
	samples := make([]uint16, rows*columns)
	for i := range samples {
		samples[i] = uint16(rng.Intn(1 << 14))
	}

	return samples
}

func encodeGrid(t *testing.T, enc *Encoder, rows, columns int, samples []uint16, seed uint16) []byte {
	t.Helper()

	dst := make([]byte, RequiredOutputSize(rows, columns))
	n, err := enc.Encode(Request{Columns: columns, Rows: rows, Samples: samples, Seed: seed, Dst: dst})
	require.NoError(t, err)

	return dst[:n]
}

func TestEncode_FlatGrid(t *testing.T) {
	enc := newTestEncoder(t)

	out := encodeGrid(t, enc, 4, 4, flatGrid(4, 4, DefaultSeed), DefaultSeed)

	// 16 pixels x 6-bit class-0 code (111110) = 96 bits = 3 whole words
	require.Len(t, out, 12)
	pattern := []byte{0xFB, 0xEF, 0xBE}
	require.Equal(t, bytes.Repeat(pattern, 4), out)
}

func TestEncode_SinglePixelFlush(t *testing.T) {
	enc := newTestEncoder(t)

	dst := make([]byte, OutputSafetyMargin)
	n, err := enc.Encode(Request{Columns: 1, Rows: 1, Samples: []uint16{DefaultSeed}, Seed: DefaultSeed, Dst: dst})
	require.NoError(t, err)

	require.Equal(t, 1, n, "6 data bits, 26 padding bits, 3 whole padding bytes dropped")
	require.Equal(t, []byte{0xF8, 0x00, 0x00, 0x00}, dst[:4])
}

func TestEncode_DeltaSign(t *testing.T) {
	tests := []struct {
		name   string
		sample uint16
		want   byte
	}{
		// class 4 code is 1100; +10 is 1010, -10 is 1111-1010 = 0101
		{"positive", 110, 0xCA},
		{"negative", 90, 0xC5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := newTestEncoder(t)
			out := encodeGrid(t, enc, 1, 1, []uint16{tt.sample}, 100)

			require.Len(t, out, 1)
			require.Equal(t, tt.want, out[0])

			samples, deltas, err := newOracle(out).decode(1, 1, 100)
			require.NoError(t, err)
			require.Equal(t, []uint16{tt.sample}, samples)
			require.Equal(t, int(tt.sample)-100, deltas[0])
		})
	}
}

func TestEncode_NegativeDeltaComplement(t *testing.T) {
	enc := newTestEncoder(t)

	const seed = uint16(0x3FFF)
	dst := make([]byte, RequiredOutputSize(1, 1))
	for m := 1; m < 1<<14; m += 37 {
		n, err := enc.Encode(Request{Columns: 1, Rows: 1, Samples: []uint16{seed - uint16(m)}, Seed: seed, Dst: dst})
		require.NoError(t, err)

		_, deltas, err := newOracle(dst[:n]).decode(1, 1, seed)
		require.NoError(t, err)
		require.Equal(t, -m, deltas[0], "magnitude %d", m)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	enc := newTestEncoder(t)

	tests := []struct {
		name          string
		rows, columns int
	}{
		{"single row", 1, 64},
		{"single column", 33, 1},
		{"two columns", 9, 2},
		{"odd sizes", 7, 13},
		{"sensor patch", 64, 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := bayerGrid(rng, tt.rows, tt.columns)
			out := encodeGrid(t, enc, tt.rows, tt.columns, samples, DefaultSeed)

			got, _, err := newOracle(out).decode(tt.rows, tt.columns, DefaultSeed)
			require.NoError(t, err)
			require.Equal(t, samples, got)
		})
	}
}

func TestEncode_RoundTripFullRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	enc := newTestEncoder(t)

	// any 14-bit samples keep every delta below 2^14
	samples := make([]uint16, 32*32)
	for i := range samples {
		samples[i] = uint16(rng.Intn(1 << 14))
	}
	samples[0] = 0x3FFF

	out := encodeGrid(t, enc, 32, 32, samples, 0)
	got, _, err := newOracle(out).decode(32, 32, 0)
	require.NoError(t, err)
	require.Equal(t, samples, got)
}

func TestEncode_PredictorParity(t *testing.T) {
	enc := newTestEncoder(t)

	base := flatGrid(4, 4, DefaultSeed)
	changed := flatGrid(4, 4, DefaultSeed)
	changed[0] += 5 // row 0, column 0
	changed[1] -= 3 // row 0, column 1

	_, baseDeltas, err := newOracle(encodeGrid(t, enc, 4, 4, base, DefaultSeed)).decode(4, 4, DefaultSeed)
	require.NoError(t, err)
	_, deltas, err := newOracle(encodeGrid(t, enc, 4, 4, changed, DefaultSeed)).decode(4, 4, DefaultSeed)
	require.NoError(t, err)

	at := func(d []int, row, col int) int { return d[row*4+col] }

	require.Equal(t, 5, at(deltas, 0, 0))
	require.Equal(t, -3, at(deltas, 0, 1))
	// row 2 predicts its first two columns from row 0
	require.Equal(t, -5, at(deltas, 2, 0))
	require.Equal(t, 3, at(deltas, 2, 1))
	// row 1 has the other parity
	require.Equal(t, at(baseDeltas, 1, 0), at(deltas, 1, 0))
	require.Equal(t, at(baseDeltas, 1, 1), at(deltas, 1, 1))
	// columns 2/3 of row 0 predict from the reconstructed columns 0/1
	require.Equal(t, -5, at(deltas, 0, 2))
	require.Equal(t, 3, at(deltas, 0, 3))
}

func TestEncode_NoHuffTableEntry(t *testing.T) {
	enc := newTestEncoder(t)

	samples := flatGrid(4, 4, DefaultSeed)
	samples[1*4+3] = DefaultSeed + 0x4000 // needs 15 bits

	dst := make([]byte, RequiredOutputSize(4, 4))
	n, err := enc.Encode(Request{Columns: 4, Rows: 4, Samples: samples, Seed: DefaultSeed, Dst: dst})
	require.ErrorIs(t, err, errs.ErrNoHuffTableEntry)
	require.Equal(t, errs.CodeNoHuffTableEntry, errs.Code(err))
	require.Contains(t, err.Error(), "row 1, column 3")
	require.Zero(t, n)

	// the largest encodable delta still works
	samples[1*4+3] = DefaultSeed + 0x3FFF
	_, err = enc.Encode(Request{Columns: 4, Rows: 4, Samples: samples, Seed: DefaultSeed, Dst: dst})
	require.NoError(t, err)
}

func TestEncode_NoHuffTableEntryNegative(t *testing.T) {
	enc := newTestEncoder(t)

	dst := make([]byte, OutputSafetyMargin)
	_, err := enc.Encode(Request{Columns: 1, Rows: 1, Samples: []uint16{0}, Seed: 0xFFFF, Dst: dst})
	require.ErrorIs(t, err, errs.ErrNoHuffTableEntry)
}

func TestEncode_SourceBufferTooSmall(t *testing.T) {
	enc := newTestEncoder(t)
	dst := make([]byte, RequiredOutputSize(3, 5))

	_, err := enc.Encode(Request{Columns: 5, Rows: 3, Samples: make([]uint16, 14), Dst: dst})
	require.ErrorIs(t, err, errs.ErrSourceBufferTooSmall)
	require.Equal(t, errs.CodeSourceBufferTooSmall, errs.Code(err))

	_, err = enc.Encode(Request{Columns: 5, Rows: 3, Samples: make([]uint16, 15), Dst: dst})
	require.NoError(t, err)

	// extra samples are ignored
	_, err = enc.Encode(Request{Columns: 5, Rows: 3, Samples: make([]uint16, 100), Dst: dst})
	require.NoError(t, err)
}

func TestEncodeBytes_SourceBoundary(t *testing.T) {
	enc := newTestEncoder(t)

	const rows, columns = 3, 5
	dst := make([]byte, RequiredOutputSize(rows, columns))
	exact := rows * columns * BytesPerSample

	_, err := enc.EncodeBytes(ByteRequest{Columns: columns, Rows: rows, Source: make([]byte, exact-1), Dst: dst})
	require.ErrorIs(t, err, errs.ErrSourceBufferTooSmall)

	_, err = enc.EncodeBytes(ByteRequest{Columns: columns, Rows: rows, Source: make([]byte, exact), Dst: dst})
	require.NoError(t, err)
}

func TestEncodeBytes_MatchesEncode(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	samples := bayerGrid(rng, 16, 24)

	tests := []struct {
		name   string
		engine endian.EndianEngine
		opt    EncoderOption
	}{
		{"little endian", endian.GetLittleEndianEngine(), WithLittleEndianSamples()},
		{"big endian", endian.GetBigEndianEngine(), WithBigEndianSamples()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := newTestEncoder(t, tt.opt)
			want := encodeGrid(t, enc, 16, 24, samples, DefaultSeed)

			dst := make([]byte, RequiredOutputSize(16, 24))
			n, err := enc.EncodeBytes(ByteRequest{
				Columns: 24,
				Rows:    16,
				Source:  endian.AppendSamples(tt.engine, nil, samples),
				Seed:    DefaultSeed,
				Dst:     dst,
			})
			require.NoError(t, err)
			require.Equal(t, want, dst[:n])
		})
	}
}

func TestEncode_OutputBufferTooSmall(t *testing.T) {
	enc := newTestEncoder(t)
	rng := rand.New(rand.NewSource(3))

	grids := map[string][]uint16{
		"flat":  flatGrid(2, 16, DefaultSeed),
		"noisy": bayerGrid(rng, 2, 16),
	}
	for name, samples := range grids {
		t.Run(name, func(t *testing.T) {
			dst := make([]byte, OutputSafetyMargin-1)
			n, err := enc.Encode(Request{Columns: 16, Rows: 2, Samples: samples, Seed: DefaultSeed, Dst: dst})
			require.ErrorIs(t, err, errs.ErrOutputBufferTooSmall)
			require.Equal(t, errs.CodeOutputBufferTooSmall, errs.Code(err))
			require.Contains(t, err.Error(), "before row 0")
			require.Zero(t, n)
			require.Equal(t, make([]byte, len(dst)), dst, "nothing encoded before the check")
		})
	}
}

func TestEncode_OutputMarginCheckedPerRow(t *testing.T) {
	enc := newTestEncoder(t)

	// row 0 stores 12 bytes, leaving less than the margin before row 1
	dst := make([]byte, OutputSafetyMargin+8)
	_, err := enc.Encode(Request{Columns: 16, Rows: 2, Samples: flatGrid(2, 16, DefaultSeed), Seed: DefaultSeed, Dst: dst})
	require.ErrorIs(t, err, errs.ErrOutputBufferTooSmall)
	require.Contains(t, err.Error(), "before row 1")

	// one row fits
	n, err := enc.Encode(Request{Columns: 16, Rows: 1, Samples: flatGrid(1, 16, DefaultSeed), Seed: DefaultSeed, Dst: dst})
	require.NoError(t, err)
	require.Equal(t, 12, n)
}

func TestEncode_RowWiderThanMargin(t *testing.T) {
	enc := newTestEncoder(t)

	// 14-bit alternating deltas cost 22 bits per pixel; 400k of them overrun the margin
	const columns = 400_000
	samples := make([]uint16, columns)
	for i := range samples {
		if (i/2)%2 == 0 {
			samples[i] = 0x3FFF
		}
	}

	dst := make([]byte, OutputSafetyMargin)
	_, err := enc.Encode(Request{Columns: columns, Rows: 1, Samples: samples, Seed: 0, Dst: dst})
	require.ErrorIs(t, err, errs.ErrOutputBufferTooSmall)
	require.Contains(t, err.Error(), "bitstream exceeds")
}

func TestEncode_EmptyGrid(t *testing.T) {
	enc := newTestEncoder(t)

	n, err := enc.Encode(Request{Columns: 0, Rows: 0})
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = enc.Encode(Request{Columns: 0, Rows: 3, Dst: make([]byte, OutputSafetyMargin)})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestEncode_InvalidDimensions(t *testing.T) {
	enc := newTestEncoder(t)

	_, err := enc.Encode(Request{Columns: -1, Rows: 2})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)

	_, err = enc.EncodeBytes(ByteRequest{Columns: 2, Rows: -2})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)

	_, err = enc.EncodeToBuffer(Request{Columns: -3, Rows: 1})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)
}

func TestEncode_DimensionsOverflow(t *testing.T) {
	enc := newTestEncoder(t)

	// the source byte count of this grid wraps to 0 without the size guard
	const huge = math.MaxInt/2 + 1
	_, err := enc.Encode(Request{Columns: huge, Rows: 4})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)

	_, err = enc.EncodeBytes(ByteRequest{Columns: 4, Rows: huge})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)

	_, err = enc.EncodeToBuffer(Request{Columns: huge, Rows: 4})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)

	_, err = enc.Encode(Request{Columns: maxSamples + 1, Rows: 1})
	require.ErrorIs(t, err, errs.ErrInvalidDimensions)

	_, err = enc.Encode(Request{Columns: maxSamples, Rows: 1})
	require.ErrorIs(t, err, errs.ErrSourceBufferTooSmall, "largest grid passes the size guard")
}

func TestEncode_WorstCaseGrid(t *testing.T) {
	enc := newTestEncoder(t)
	samples := worstCaseGrid(64, 64)

	out := encodeGrid(t, enc, 64, 64, samples, 0)
	require.Len(t, out, MaxBitstreamSize(64, 64), "every sample costs the maximum")
	require.Greater(t, len(out), 64*64*BytesPerSample)

	got, deltas, err := newOracle(out).decode(64, 64, 0)
	require.NoError(t, err)
	require.Equal(t, samples, got)
	for i, d := range deltas {
		require.Equal(t, 0x3FFF, max(d, -d), "sample %d", i)
	}

	buf, err := enc.EncodeToBuffer(Request{Columns: 64, Rows: 64, Samples: samples})
	require.NoError(t, err)
	require.Equal(t, out, buf)
}

func TestEncodeToBuffer_FullRangeNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	enc := newTestEncoder(t)
	samples := noiseGrid(rng, 64, 64)

	out, err := enc.EncodeToBuffer(Request{Columns: 64, Rows: 64, Samples: samples, Seed: DefaultSeed})
	require.NoError(t, err)
	require.Greater(t, len(out), 64*64*BytesPerSample, "noise does not fit in the raw sample size")
	require.LessOrEqual(t, len(out), MaxBitstreamSize(64, 64))

	got, _, err := newOracle(out).decode(64, 64, DefaultSeed)
	require.NoError(t, err)
	require.Equal(t, samples, got)
}

func TestEncodeToBuffer(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	enc := newTestEncoder(t)
	samples := bayerGrid(rng, 12, 20)

	want := encodeGrid(t, enc, 12, 20, samples, DefaultSeed)

	got, err := enc.EncodeToBuffer(Request{Columns: 20, Rows: 12, Samples: samples, Seed: DefaultSeed})
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, len(got), cap(got), "result is an exact copy")

	_, err = enc.EncodeToBuffer(Request{Columns: 20, Rows: 12, Samples: samples[:10]})
	require.ErrorIs(t, err, errs.ErrSourceBufferTooSmall)
}

func TestEncode_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	enc := newTestEncoder(t)
	samples := bayerGrid(rng, 32, 32)

	want := encodeGrid(t, enc, 32, 32, samples, DefaultSeed)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]byte, RequiredOutputSize(32, 32))
			n, err := enc.Encode(Request{Columns: 32, Rows: 32, Samples: samples, Seed: DefaultSeed, Dst: dst})
			assert.NoError(t, err)
			assert.Equal(t, want, dst[:n])
		}()
	}
	wg.Wait()
}

func TestEncode_Logging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	enc := newTestEncoder(t, WithLogger(logger))

	encodeGrid(t, enc, 4, 4, flatGrid(4, 4, DefaultSeed), DefaultSeed)

	require.Contains(t, logs.String(), "encode started")
	require.Contains(t, logs.String(), "encode finished")
	require.Contains(t, logs.String(), "bytes=12")
}

func TestWithLogger_NilKeepsDefault(t *testing.T) {
	enc := newTestEncoder(t, WithLogger(nil))
	require.NotNil(t, enc.logger)

	encodeGrid(t, enc, 2, 2, flatGrid(2, 2, 1), 1)
}

func TestMaxBitstreamSize(t *testing.T) {
	tests := []struct {
		rows, columns int
		want          int
	}{
		{0, 0, 0},
		{1, 1, 4},       // 22 bits
		{2, 3, 20},      // 132 bits
		{64, 64, 11264}, // 90112 bits, whole words
		{4032, 6048, (4032*6048*22 + 31) / 32 * 4},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, MaxBitstreamSize(tt.rows, tt.columns), "%dx%d", tt.rows, tt.columns)
	}
}

func TestRequiredOutputSize(t *testing.T) {
	require.Equal(t, OutputSafetyMargin, RequiredOutputSize(0, 0))
	require.Equal(t, MaxBitstreamSize(4032, 6048)+OutputSafetyMargin, RequiredOutputSize(4032, 6048))
	require.Greater(t, RequiredOutputSize(4032, 6048), 4032*6048*BytesPerSample+OutputSafetyMargin)
}
