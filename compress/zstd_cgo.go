//go:build cgo && nefenc_gozstd

package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/valyala/gozstd"
)

// Compress compresses the input data with libzstd at level 3.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}

// DecompressSized streams the frame into a buffer of exactly size bytes and fails if
// the stream holds more.
func (c ZstdCompressor) DecompressSized(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return emptySized(size)
	}

	zr := gozstd.NewReader(bytes.NewReader(data))
	defer zr.Release()

	out := make([]byte, size)
	n, err := io.ReadFull(zr, out)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, sizeMismatch(n, size)
		}

		return nil, err
	}

	var extra [1]byte
	if _, err := io.ReadFull(zr, extra[:]); err == nil {
		return nil, fmt.Errorf("%w: stream holds more than %d bytes", ErrSizeMismatch, size)
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}

	return out, nil
}
