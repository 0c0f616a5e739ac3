package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagine-pi/imagine/stream"
)

// fakeSource is an in-memory source that records lifecycle calls.
type fakeSource struct {
	data    []byte
	size    int64
	pos     int
	reads   int
	opens   int
	closes  int
	openErr error
	readErr error
	onRead  func(reads int)
	log     *[]string
}

func newFakeSource(data []byte) *fakeSource {
	return &fakeSource{data: data, size: int64(len(data))}
}

func (s *fakeSource) Open() error {
	s.opens++
	return s.openErr
}

func (s *fakeSource) Read(p []byte) (int, error) {
	s.reads++
	if s.onRead != nil {
		s.onRead(s.reads)
	}
	if s.readErr != nil && s.pos > 0 {
		return 0, s.readErr
	}
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *fakeSource) Size() int64 { return s.size }

func (s *fakeSource) Close() error {
	s.closes++
	if s.log != nil {
		*s.log = append(*s.log, "source.close")
	}
	return nil
}

// fakeSink is an in-memory sink that records lifecycle calls.
type fakeSink struct {
	buf      bytes.Buffer
	opens    int
	closes   int
	openErr  error
	writeErr error
	log      *[]string
}

func (s *fakeSink) Open() error {
	s.opens++
	return s.openErr
}

func (s *fakeSink) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.buf.Write(p)
}

func (s *fakeSink) Size() int64 { return stream.SizeUnknown }

func (s *fakeSink) Close() error {
	s.closes++
	if s.log != nil {
		*s.log = append(*s.log, "sink.close")
	}
	return nil
}

// steppedClock advances a fixed amount on every reading.
type steppedClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppedClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestTransferByteFidelity(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789abcdef"), 8192)
	src := newFakeSource(data)
	sink := &fakeSink{}

	written, err := New().Transfer(context.Background(), src, sink)
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), written)
	assert.Equal(t, data, sink.buf.Bytes(), "sink content must equal source bytes exactly")
	assert.Equal(t, 1, src.opens)
	assert.Equal(t, 1, src.closes)
	assert.Equal(t, 1, sink.opens)
	assert.Equal(t, 1, sink.closes)
}

func TestTransferRepeatable(t *testing.T) {
	t.Parallel()

	data := []byte("idempotent against a fresh sink")
	engine := New()

	for range 2 {
		sink := &fakeSink{}
		written, err := engine.Transfer(context.Background(), newFakeSource(data), sink)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), written)
		assert.Equal(t, data, sink.buf.Bytes())
	}
}

func TestTransferCloseOrder(t *testing.T) {
	t.Parallel()

	var log []string
	src := newFakeSource([]byte("data"))
	src.log = &log
	sink := &fakeSink{log: &log}

	_, err := New().Transfer(context.Background(), src, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"sink.close", "source.close"}, log, "close order must be the reverse of open order")
}

func TestTransferSourceOpenFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource(nil)
	src.openErr = errors.New("no such file")
	sink := &fakeSink{}

	_, err := New().Transfer(context.Background(), src, sink)
	require.ErrorIs(t, err, src.openErr)

	assert.Equal(t, 0, sink.opens, "sink must not be opened after a source open failure")
	assert.Equal(t, 0, src.closes, "a failed open holds no resources to release")
}

func TestTransferSinkOpenFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource([]byte("data"))
	sink := &fakeSink{openErr: errors.New("permission denied")}

	_, err := New().Transfer(context.Background(), src, sink)
	require.ErrorIs(t, err, sink.openErr)

	assert.Equal(t, 1, src.closes, "source must be closed exactly once when the sink fails to open")
	assert.Equal(t, 0, sink.closes)
}

func TestTransferWriteFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource([]byte("data"))
	sink := &fakeSink{writeErr: errors.New("device full")}

	_, err := New().Transfer(context.Background(), src, sink)
	require.ErrorIs(t, err, sink.writeErr)

	assert.Equal(t, 1, src.closes)
	assert.Equal(t, 1, sink.closes, "both endpoints must be released after a write fault")
}

func TestTransferReadFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource(bytes.Repeat([]byte("x"), 100))
	src.readErr = errors.New("connection reset")
	sink := &fakeSink{}

	_, err := New(WithChunkSize(10)).Transfer(context.Background(), src, sink)
	require.ErrorIs(t, err, src.readErr)

	assert.Equal(t, 1, src.closes)
	assert.Equal(t, 1, sink.closes)
}

func TestTransferCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newFakeSource(bytes.Repeat([]byte("z"), 100))
	src.onRead = func(reads int) {
		if reads == 1 {
			cancel()
		}
	}
	sink := &fakeSink{}

	written, err := New(WithChunkSize(10)).Transfer(ctx, src, sink)
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, int64(10), written, "the in-flight chunk must complete before the abort")
	assert.Equal(t, 10, sink.buf.Len(), "sink holds a clean partial prefix")
	assert.Equal(t, 1, src.closes)
	assert.Equal(t, 1, sink.closes)
}

func TestTransferProgressKnownTotal(t *testing.T) {
	t.Parallel()

	var samples []Sample
	engine := New(
		WithChunkSize(16),
		WithInterval(0),
		WithProgress(func(s Sample) { samples = append(samples, s) }),
	)

	data := bytes.Repeat([]byte("p"), 64)
	_, err := engine.Transfer(context.Background(), newFakeSource(data), &fakeSink{})
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	prev := -1.0
	for _, s := range samples {
		assert.True(t, s.TotalKnown())
		pct, ok := s.Percent()
		require.True(t, ok)
		assert.GreaterOrEqual(t, pct, prev, "percent must be non-decreasing")
		assert.LessOrEqual(t, pct, 100.0)
		prev = pct
	}

	final := samples[len(samples)-1]
	assert.Equal(t, int64(64), final.BytesDone)
	pct, ok := final.Percent()
	require.True(t, ok)
	assert.Equal(t, 100.0, pct, "final sample must report exactly 100")
}

func TestTransferProgressUnknownTotal(t *testing.T) {
	t.Parallel()

	var samples []Sample
	engine := New(
		WithChunkSize(8),
		WithInterval(0),
		WithProgress(func(s Sample) { samples = append(samples, s) }),
	)

	src := newFakeSource(bytes.Repeat([]byte("u"), 64))
	src.size = stream.SizeUnknown
	_, err := engine.Transfer(context.Background(), src, &fakeSink{})
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	for _, s := range samples {
		assert.False(t, s.TotalKnown())
		_, ok := s.Percent()
		assert.False(t, ok, "unknown totals must not produce a percentage")
		_, ok = s.ETA()
		assert.False(t, ok, "unknown totals must not produce an ETA")
	}
}

func TestTransferProgressThrottled(t *testing.T) {
	t.Parallel()

	clock := &steppedClock{t: time.Unix(1000, 0), step: 300 * time.Millisecond}
	var samples []Sample
	engine := New(
		WithChunkSize(1),
		WithInterval(time.Second),
		WithProgress(func(s Sample) { samples = append(samples, s) }),
	)
	engine.now = clock.now

	data := bytes.Repeat([]byte("t"), 10)
	_, err := engine.Transfer(context.Background(), newFakeSource(data), &fakeSink{})
	require.NoError(t, err)

	// One reading at start, one per chunk, one final: samples land at
	// chunks 1, 5, and 9, plus the unthrottled final sample.
	var done []int64
	for _, s := range samples {
		done = append(done, s.BytesDone)
	}
	assert.Equal(t, []int64{1, 5, 9, 10}, done)
}

func TestTransferFinalSampleAndCompletion(t *testing.T) {
	t.Parallel()

	var samples []Sample
	var completed bool
	engine := New(
		WithProgress(func(s Sample) {
			assert.False(t, completed, "completion must follow the final sample")
			samples = append(samples, s)
		}),
		WithOnComplete(func() { completed = true }),
	)

	data := []byte("short")
	_, err := engine.Transfer(context.Background(), newFakeSource(data), &fakeSink{})
	require.NoError(t, err)

	require.NotEmpty(t, samples)
	assert.Equal(t, int64(len(data)), samples[len(samples)-1].BytesDone)
	assert.True(t, completed)
}

func TestTransferEmptySource(t *testing.T) {
	t.Parallel()

	var samples []Sample
	var completed bool
	engine := New(
		WithProgress(func(s Sample) { samples = append(samples, s) }),
		WithOnComplete(func() { completed = true }),
	)

	written, err := engine.Transfer(context.Background(), newFakeSource(nil), &fakeSink{})
	require.NoError(t, err)
	assert.Zero(t, written)
	require.Len(t, samples, 1, "an empty transfer still emits its final sample")
	assert.True(t, completed)
}
