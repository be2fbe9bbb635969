package lossless

import (
	"log/slog"

	"github.com/arloliu/nefenc/endian"
	"github.com/arloliu/nefenc/internal/options"
)

// EncoderConfig holds the encoder settings applied by EncoderOption values.
type EncoderConfig struct {
	logger       *slog.Logger
	sampleEngine endian.EndianEngine
}

func newEncoderConfig() *EncoderConfig {
	return &EncoderConfig{
		logger:       slog.New(slog.DiscardHandler),
		sampleEngine: endian.GetLittleEndianEngine(),
	}
}

// EncoderOption configures an Encoder.
type EncoderOption = options.Option[*EncoderConfig]

// WithLogger sets the structured logger used for debug output.
// A nil logger keeps the default, which discards everything.
func WithLogger(logger *slog.Logger) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithLittleEndianSamples makes EncodeBytes read samples as little-endian. This is
// the default and matches buffers produced on x86 and ARM hosts.
func WithLittleEndianSamples() EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		c.sampleEngine = endian.GetLittleEndianEngine()
	})
}

// WithBigEndianSamples makes EncodeBytes read samples as big-endian.
func WithBigEndianSamples() EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		c.sampleEngine = endian.GetBigEndianEngine()
	})
}
