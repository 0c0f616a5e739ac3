// Package stream provides a uniform open/read/write/close contract over the
// byte sources and sinks used during imaging: local files, HTTP responses,
// zip archive members, and xz/gzip compressed streams.
//
// Every endpoint resolves its total size at Open when the size is cheaply
// knowable (file stat, Content-Length, zip member metadata) and reports
// SizeUnknown otherwise. Endpoints are owned by the caller that opened them
// and must be closed exactly once; Close is idempotent and releases all
// underlying handles even after a prior error.
package stream

import (
	"errors"
	"io"
)

// SizeUnknown is the size reported by an endpoint whose total length cannot
// be determined before the stream is consumed. It is distinct from zero.
const SizeUnknown int64 = -1

// ErrUnsupportedFormat is returned when an archive extension has no
// registered extraction strategy.
var ErrUnsupportedFormat = errors.New("stream: unsupported archive format")

// Endpoint is a source or sink of bytes opened and closed as a unit.
type Endpoint interface {
	// Open establishes readiness to transfer and resolves the size if
	// cheaply knowable. A failed Open holds no resources.
	Open() error

	// Size returns the total byte count resolved at Open, or SizeUnknown.
	Size() int64

	// Close releases underlying handles, archive contexts, and network
	// connections. It is idempotent and safe after a failed Open.
	Close() error
}

// Source is a readable endpoint. Read returns io.EOF at end of stream.
type Source interface {
	Endpoint
	io.Reader
}

// Sink is a writable endpoint. Write either writes all given bytes or
// returns a *WriteError.
type Sink interface {
	Endpoint
	io.Writer
}

// OpenError reports a failure to open an endpoint: missing resource,
// network failure, or corrupt container.
type OpenError struct {
	Target string // path, URL, or archive member
	Err    error
}

func (e *OpenError) Error() string {
	return "stream: open " + e.Target + ": " + e.Err.Error()
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriteError reports a destination fault such as a full device or a
// permission failure.
type WriteError struct {
	Target string
	Err    error
}

func (e *WriteError) Error() string {
	return "stream: write " + e.Target + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error { return e.Err }
