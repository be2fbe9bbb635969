// Package batch encodes many frames concurrently.
//
// A single frame is always encoded by one goroutine, strictly in row order; the
// predictor leaves no room for parallelism inside an image. Throughput comes from
// encoding independent frames (burst shots, focus stacks, a folder of conversions) at
// the same time, each with its own predictor state and output buffer.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arloliu/nefenc/internal/hash"
	"github.com/arloliu/nefenc/internal/options"
	"github.com/arloliu/nefenc/lossless"
	"github.com/arloliu/nefenc/strip"
)

// Frame is one grid to encode.
type Frame struct {
	// ID labels the frame in errors and logs.
	ID      string
	Columns int
	Rows    int
	Samples []uint16
	Seed    uint16
}

// Result is the encoded form of the frame at the same index.
type Result struct {
	ID        string
	Columns   int
	Rows      int
	Seed      uint16
	Bitstream []byte
	// Checksum is the xxHash64 of Bitstream, or 0 when checksums are disabled.
	Checksum uint64
}

// Strip returns the result as a strip ready for strip.Marshal.
func (r Result) Strip() strip.Strip {
	return strip.Strip{
		Columns:   r.Columns,
		Rows:      r.Rows,
		Seed:      r.Seed,
		Bitstream: r.Bitstream,
	}
}

// Encoder runs frame encodes on a bounded set of goroutines.
type Encoder struct {
	workers  int
	encoder  *lossless.Encoder
	checksum bool
	logger   *slog.Logger
}

// NewEncoder creates a batch Encoder.
//
// Available options:
//   - WithWorkers(n)
//   - WithEncoder(enc)
//   - WithChecksum(enabled)
//   - WithLogger(logger)
func NewEncoder(opts ...Option) (*Encoder, error) {
	cfg := newConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if cfg.encoder == nil {
		enc, err := lossless.NewEncoder(lossless.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		cfg.encoder = enc
	}

	return &Encoder{
		workers:  cfg.workers,
		encoder:  cfg.encoder,
		checksum: cfg.checksum,
		logger:   cfg.logger,
	}, nil
}

// Encode encodes every frame and returns the results in input order.
//
// The first failing frame stops the batch: frames not yet started are skipped and
// its error is returned, wrapped with the frame index and ID. Cancelling ctx also
// stops the batch between frames; a frame already being encoded runs to completion.
func (b *Encoder) Encode(ctx context.Context, frames []Frame) ([]Result, error) {
	results := make([]Result, len(frames))
	if len(frames) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(b.workers, len(frames)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}

				res, err := b.encodeFrame(frames[i])
				if err != nil {
					fail(fmt.Errorf("frame %d (%s): %w", i, frames[i].ID, err))
					continue
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range frames {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	if err := ctx.Err(); err != nil {
		// our own cancel only runs on failure or return, so this is the caller's
		return nil, err
	}

	return results, nil
}

func (b *Encoder) encodeFrame(f Frame) (Result, error) {
	bs, err := b.encoder.EncodeToBuffer(lossless.Request{
		Columns: f.Columns,
		Rows:    f.Rows,
		Samples: f.Samples,
		Seed:    f.Seed,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		ID:        f.ID,
		Columns:   f.Columns,
		Rows:      f.Rows,
		Seed:      f.Seed,
		Bitstream: bs,
	}
	if b.checksum {
		res.Checksum = hash.Checksum(bs)
	}

	b.logger.Debug("frame encoded",
		slog.String("id", f.ID),
		slog.Int("bytes", len(bs)),
	)

	return res, nil
}
