package transfer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NamanBalaji/bsfetch/internal/chunk"
	"github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/locator"
	"github.com/NamanBalaji/bsfetch/internal/logger"
	"github.com/NamanBalaji/bsfetch/internal/progress"
)

// DefaultMaxWorkers caps concurrent chunk fetches regardless of settings.
const DefaultMaxWorkers = 16

var (
	ErrInvalidSpec    = errors.New("invalid transfer spec")
	ErrLengthMismatch = errors.New("fetched length does not match chunk length")
	ErrWriteFailed    = errors.New("sink write failed")
)

// Spec describes one file transfer.
type Spec struct {
	FileID         string
	TotalSize      int64
	ChunkSize      int64
	MaxConcurrency int
	MaxRetries     int
}

func (s Spec) Validate() error {
	switch {
	case s.TotalSize < 0:
		return fmt.Errorf("%w: negative total size %d", ErrInvalidSpec, s.TotalSize)
	case s.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidSpec, s.ChunkSize)
	case s.MaxConcurrency < 1:
		return fmt.Errorf("%w: max concurrency must be at least 1, got %d", ErrInvalidSpec, s.MaxConcurrency)
	case s.MaxRetries < 0:
		return fmt.Errorf("%w: negative retry count %d", ErrInvalidSpec, s.MaxRetries)
	}

	return nil
}

// RangeFetcher retrieves the inclusive byte range [start, end] of the
// resource src points at, retrying up to maxRetries times.
type RangeFetcher interface {
	FetchRange(ctx context.Context, src locator.Source, start, end, sizeHint int64, maxRetries int) ([]byte, error)
}

// Observer receives a Progress after each completed chunk. Calls are
// serialized and CompletedChunks strictly increases between them.
type Observer interface {
	Observe(p progress.Progress)
}

type ObserverFunc func(p progress.Progress)

func (f ObserverFunc) Observe(p progress.Progress) {
	f(p)
}

// Result summarizes a finished run.
type Result struct {
	TotalChunks     int
	CompletedChunks int
	Bytes           int64
	Cancelled       bool
	Elapsed         time.Duration
}

type Option func(*Coordinator)

// WithMaxWorkers overrides DefaultMaxWorkers.
func WithMaxWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator splits a file into chunks and fetches them in parallel into
// a random-access sink.
type Coordinator struct {
	fetcher    RangeFetcher
	maxWorkers int
	now        func() time.Time
}

func NewCoordinator(fetcher RangeFetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:    fetcher,
		maxWorkers: DefaultMaxWorkers,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// EffectiveConcurrency returns how many chunks may be in flight at once.
func EffectiveConcurrency(maxWorkers, maxConcurrency, totalChunks int) int {
	return max(1, min(maxWorkers, maxConcurrency, totalChunks))
}

// Run transfers the file described by spec into sink.
//
// Chunks complete in any order. A chunk failure stops new dispatch and is
// returned as a CHUNK TransferError once in-flight chunks finish; bytes
// already written stay in sink. Cancelling ctx has the same effect on
// dispatch but Run then reports Result.Cancelled with a nil error.
func (c *Coordinator) Run(ctx context.Context, spec Spec, sink io.WriterAt, src locator.Source, obs Observer) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, errors.NewConfigurationError(err, spec.FileID)
	}

	chunks, err := chunk.Plan(spec.TotalSize, spec.ChunkSize)
	if err != nil {
		return Result{}, errors.NewConfigurationError(err, spec.FileID)
	}

	log := logger.Component("transfer").With().Str("file", spec.FileID).Logger()
	started := c.now()
	result := Result{TotalChunks: len(chunks)}

	if len(chunks) == 0 {
		if obs != nil {
			obs.Observe(progress.Progress{})
		}

		result.Elapsed = c.now().Sub(started)

		return result, nil
	}

	limit := EffectiveConcurrency(c.maxWorkers, spec.MaxConcurrency, len(chunks))
	log.Debug().Int("chunks", len(chunks)).Int("concurrency", limit).Int64("size", spec.TotalSize).Msg("Starting transfer")

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		writeMu    sync.Mutex
		progressMu sync.Mutex
		completed  int
		written    int64
	)

	for _, ch := range chunks {
		if groupCtx.Err() != nil {
			log.Debug().Int("chunk", ch.Index).Msg("Dispatch stopped")
			break
		}

		g.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}

			begin := c.now()

			// In-flight chunks run to completion once started.
			data, err := c.fetcher.FetchRange(context.WithoutCancel(groupCtx), src, ch.Offset, ch.End(), ch.Length, spec.MaxRetries)
			if err != nil {
				log.Error().Err(err).Int("chunk", ch.Index).Msg("Chunk failed")
				return errors.NewChunkError(err, spec.FileID, ch.Index)
			}

			if int64(len(data)) != ch.Length {
				return errors.NewChunkError(fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(data), ch.Length), spec.FileID, ch.Index)
			}

			writeMu.Lock()
			n, err := sink.WriteAt(data, ch.Offset)
			writeMu.Unlock()

			if err != nil {
				return errors.NewChunkError(fmt.Errorf("%w: %w", ErrWriteFailed, err), spec.FileID, ch.Index)
			}

			if n != len(data) {
				return errors.NewChunkError(errors.ErrShortWrite, spec.FileID, ch.Index)
			}

			elapsed := c.now().Sub(begin)

			progressMu.Lock()
			defer progressMu.Unlock()

			completed++
			written += int64(n)

			if obs != nil {
				obs.Observe(progress.Progress{
					CompletedChunks:   completed,
					TotalChunks:       len(chunks),
					LastChunkBytes:    int64(n),
					LastChunkDuration: elapsed,
				})
			}

			log.Debug().Int("chunk", ch.Index).Int64("offset", ch.Offset).Dur("took", elapsed).Msg("Chunk complete")

			return nil
		})
	}

	err = g.Wait()

	result.CompletedChunks = completed
	result.Bytes = written
	result.Elapsed = c.now().Sub(started)

	if err != nil {
		return result, err
	}

	if completed < len(chunks) && ctx.Err() != nil {
		log.Debug().Int("completed", completed).Msg("Transfer cancelled")

		result.Cancelled = true

		return result, nil
	}

	log.Debug().Dur("elapsed", result.Elapsed).Msg("Transfer complete")

	return result, nil
}
