package compress

import (
	"errors"
	"fmt"

	"github.com/arloliu/nefenc/format"
)

// Compressor compresses a payload.
//
// The returned slice is owned by the caller, except for the no-op codec which
// returns its input.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload produced by the matching Compressor.
//
// It returns an error when the input is corrupted or was produced by another
// algorithm.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)

	// DecompressSized restores a payload whose decoded length is known to be size.
	// It never allocates much more than size bytes for the output, and fails with
	// ErrSizeMismatch when the payload decodes to any other length.
	DecompressSized(data []byte, size int) ([]byte, error)
}

// ErrSizeMismatch reports a payload that does not decode to the expected length.
var ErrSizeMismatch = errors.New("compress: decoded size mismatch")

func sizeMismatch(got, want int) error {
	return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, got, want)
}

// emptySized handles an empty payload, which only an empty input produces.
func emptySized(size int) ([]byte, error) {
	if size != 0 {
		return nil, sizeMismatch(0, size)
	}

	return nil, nil
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CompressionStats describes one compression of a strip payload.
type CompressionStats struct {
	Algorithm      format.CompressionType
	OriginalSize   int64
	CompressedSize int64
}

// CompressionRatio returns compressed size / original size, or 0 for an empty input.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space savings as a percentage.
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// Measure compresses data with codec and reports the result sizes.
func Measure(compressionType format.CompressionType, data []byte) ([]byte, CompressionStats, error) {
	codec, err := GetCodec(compressionType)
	if err != nil {
		return nil, CompressionStats{}, err
	}

	out, err := codec.Compress(data)
	if err != nil {
		return nil, CompressionStats{}, err
	}

	return out, CompressionStats{
		Algorithm:      compressionType,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(out)),
	}, nil
}
