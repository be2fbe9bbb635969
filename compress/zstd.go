package compress

// ZstdCompressor provides Zstandard compression for strip payloads.
//
// The default build uses the pure-Go klauspost/compress implementation; the cgo
// variant in zstd_cgo.go binds libzstd through valyala/gozstd.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
