// Package transfer drives a source/sink pair through a chunked copy loop,
// emitting throttled progress samples and guaranteeing resource release in
// reverse open order on every outcome.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/imagine-pi/imagine/stream"
)

// ErrAborted is the outcome of a cooperative cancellation. It is not a
// fault: the sink holds whatever chunks completed before the abort.
var ErrAborted = errors.New("transfer: aborted")

const (
	// DefaultChunkSize is the per-read buffer size.
	DefaultChunkSize = 40960

	// DefaultInterval is the minimum wall-clock time between progress
	// samples, except the final one.
	DefaultInterval = time.Second
)

// ProgressFunc receives progress samples during a transfer.
type ProgressFunc func(Sample)

// Engine copies bytes from a source to a sink. A single engine drives one
// transfer at a time; blocking happens only inside chunk reads and writes.
type Engine struct {
	chunkSize int
	interval  time.Duration
	progress  ProgressFunc
	complete  func()
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize sets the per-read buffer size. Values <= 0 keep the
// default.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithInterval sets the minimum time between progress samples. Values <= 0
// disable throttling.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithProgress sets the progress callback. After the copy loop ends a
// final sample with exact totals is always emitted, regardless of the
// throttle interval.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithOnComplete sets a callback invoked after the final sample, so a
// renderer can clear any in-place progress indicator.
func WithOnComplete(fn func()) Option {
	return func(e *Engine) {
		e.complete = fn
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		chunkSize: DefaultChunkSize,
		interval:  DefaultInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer opens src then dst, copies chunks until the source is drained,
// and closes dst then src. Close happens in that reverse order on every
// path: success, I/O failure, and cancellation. It returns the number of
// bytes written to the sink.
//
// Cancellation is checked between chunks only; a chunk write is never
// interrupted. A canceled context yields an error wrapping ErrAborted.
func (e *Engine) Transfer(ctx context.Context, src stream.Source, dst stream.Sink) (written int64, retErr error) {
	if err := src.Open(); err != nil {
		return 0, err
	}
	if err := dst.Open(); err != nil {
		src.Close()
		return 0, err
	}
	defer func() {
		if cerr := dst.Close(); retErr == nil && cerr != nil {
			retErr = cerr
		}
		if cerr := src.Close(); retErr == nil && cerr != nil {
			retErr = cerr
		}
	}()

	total := src.Size()
	start := e.now()
	last := start.Add(-e.interval)
	buf := make([]byte, e.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			if e.progress != nil {
				if now := e.now(); now.Sub(last) >= e.interval {
					e.progress(e.sample(written, total, now.Sub(start)))
					last = now
				}
			}
		}
		if er != nil {
			if er == io.EOF {
				break
			}
			return written, er
		}
	}

	if e.progress != nil {
		e.progress(e.sample(written, total, e.now().Sub(start)))
	}
	if e.complete != nil {
		e.complete()
	}
	return written, nil
}

func (e *Engine) sample(done, total int64, elapsed time.Duration) Sample {
	s := Sample{BytesDone: done, BytesTotal: total, Elapsed: elapsed}
	if secs := elapsed.Seconds(); secs > 0 {
		s.Rate = float64(done) / secs
	}
	return s
}
