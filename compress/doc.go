// Package compress provides the optional second-stage codecs for strip payloads.
//
// The NEF bitstream is already entropy coded, so general-purpose compression gains
// little on noisy sensor data. It pays off for synthetic or heavily clipped frames
// (flat skies, black borders, test charts), which an image pipeline may stage many
// times between stages.
//
// Supported algorithms:
//   - None: the bitstream is stored unchanged
//   - Zstd: best ratio, moderate speed (klauspost/compress/zstd)
//   - S2: balanced (klauspost/compress/s2)
//   - LZ4: fastest decompression (pierrec/lz4)
//
// Usage:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	packed, err := codec.Compress(bitstream)
//	bitstream, err = codec.Decompress(packed)
//
// When the decoded length is known, DecompressSized bounds the output allocation by
// it and fails with ErrSizeMismatch on any other length.
//
// All codecs are safe for concurrent use.
package compress
