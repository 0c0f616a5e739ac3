package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagine-pi/imagine/stream"
)

func TestSamplePercent(t *testing.T) {
	t.Parallel()

	pct, ok := Sample{BytesDone: 25, BytesTotal: 100}.Percent()
	require.True(t, ok)
	assert.Equal(t, 25.0, pct)

	pct, ok = Sample{BytesDone: 100, BytesTotal: 100}.Percent()
	require.True(t, ok)
	assert.Equal(t, 100.0, pct)

	_, ok = Sample{BytesDone: 25, BytesTotal: stream.SizeUnknown}.Percent()
	assert.False(t, ok)

	pct, ok = Sample{BytesDone: 0, BytesTotal: 0}.Percent()
	require.True(t, ok)
	assert.Equal(t, 100.0, pct, "an empty but known total is complete")
}

func TestSampleETA(t *testing.T) {
	t.Parallel()

	s := Sample{BytesDone: 50, BytesTotal: 100, Elapsed: 5 * time.Second, Rate: 10}
	eta, ok := s.ETA()
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, eta, "ETA uses the average rate since start")

	_, ok = Sample{BytesDone: 50, BytesTotal: stream.SizeUnknown, Rate: 10}.ETA()
	assert.False(t, ok, "unknown total has no ETA")

	_, ok = Sample{BytesDone: 0, BytesTotal: 100}.ETA()
	assert.False(t, ok, "zero elapsed time has no rate and no ETA")

	eta, ok = Sample{BytesDone: 150, BytesTotal: 100, Rate: 10}.ETA()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), eta, "overshoot clamps to zero remaining")
}

func TestEngineSampleRate(t *testing.T) {
	t.Parallel()

	e := New()

	s := e.sample(1000, 2000, 2*time.Second)
	assert.Equal(t, 500.0, s.Rate, "rate is cumulative bytes over elapsed seconds")

	s = e.sample(1000, 2000, 0)
	assert.Zero(t, s.Rate, "no rate before time has elapsed")
}
