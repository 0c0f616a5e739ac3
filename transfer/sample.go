package transfer

import (
	"time"

	"github.com/imagine-pi/imagine/stream"
)

// Sample is a point-in-time view of a running transfer. Samples are
// emitted in non-decreasing BytesDone order.
type Sample struct {
	// BytesDone is the number of bytes written to the sink so far.
	BytesDone int64

	// BytesTotal is the source's total size, or stream.SizeUnknown.
	BytesTotal int64

	// Elapsed is the wall-clock time since the transfer started.
	Elapsed time.Duration

	// Rate is the average throughput in bytes per second since the start
	// of the transfer. Zero when no time has elapsed.
	Rate float64
}

// TotalKnown reports whether the source's total size was resolvable.
func (s Sample) TotalKnown() bool {
	return s.BytesTotal != stream.SizeUnknown
}

// Percent returns completion in [0, 100]. It is undefined when the total
// is unknown, reported by the second return value.
func (s Sample) Percent() (float64, bool) {
	if !s.TotalKnown() {
		return 0, false
	}
	if s.BytesTotal == 0 {
		return 100, true
	}
	return float64(s.BytesDone) / float64(s.BytesTotal) * 100, true
}

// ETA estimates the remaining time from the average rate. It is undefined
// when the total is unknown or no throughput has been observed.
func (s Sample) ETA() (time.Duration, bool) {
	if !s.TotalKnown() || s.Rate <= 0 {
		return 0, false
	}
	remain := s.BytesTotal - s.BytesDone
	if remain < 0 {
		remain = 0
	}
	return time.Duration(float64(remain) / s.Rate * float64(time.Second)), true
}
