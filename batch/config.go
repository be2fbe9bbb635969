package batch

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/arloliu/nefenc/errs"
	"github.com/arloliu/nefenc/internal/options"
	"github.com/arloliu/nefenc/lossless"
)

type config struct {
	workers  int
	encoder  *lossless.Encoder
	checksum bool
	logger   *slog.Logger
}

func newConfig() *config {
	return &config{
		workers:  runtime.GOMAXPROCS(0),
		checksum: true,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// Option configures a batch Encoder.
type Option = options.Option[*config]

// WithWorkers sets the number of frames encoded at the same time. The default is
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return options.New(func(c *config) error {
		if n < 1 {
			return fmt.Errorf("%w: %d", errs.ErrInvalidWorkerCount, n)
		}
		c.workers = n

		return nil
	})
}

// WithEncoder sets the frame encoder. By default a lossless.Encoder with default
// options is used.
func WithEncoder(enc *lossless.Encoder) Option {
	return options.NoError(func(c *config) {
		c.encoder = enc
	})
}

// WithChecksum enables or disables the xxHash64 fingerprint of each bitstream.
// Enabled by default.
func WithChecksum(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.checksum = enabled
	})
}

// WithLogger sets the structured logger for per-frame progress.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}
