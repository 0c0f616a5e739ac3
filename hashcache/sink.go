package hashcache

import (
	"github.com/opencontainers/go-digest"

	"github.com/imagine-pi/imagine/stream"
)

// HashingSink wraps a writable endpoint and feeds every written chunk into
// an incremental digest, so the digest reflects exactly the bytes written
// with no separate read-back pass. When the sink closes cleanly, a sidecar
// recording the digest is written beside the data file at path.
type HashingSink struct {
	sink     stream.Sink
	path     string
	digester digest.Digester
	closed   bool
}

// NewHashingSink wraps sink, recording a sidecar for the data file at path
// on Close. Any writable endpoint can gain hashing this way.
func NewHashingSink(sink stream.Sink, path string) *HashingSink {
	return &HashingSink{
		sink:     sink,
		path:     path,
		digester: digest.SHA256.Digester(),
	}
}

// Open opens the underlying sink.
func (h *HashingSink) Open() error { return h.sink.Open() }

// Size reports the underlying sink's size.
func (h *HashingSink) Size() int64 { return h.sink.Size() }

// Write writes to the underlying sink and feeds exactly the written bytes
// into the digest, so a short write never desynchronizes the two.
func (h *HashingSink) Write(p []byte) (int, error) {
	n, err := h.sink.Write(p)
	if n > 0 {
		h.digester.Hash().Write(p[:n]) //nolint:errcheck // hash writes never fail
	}
	return n, err
}

// Digest returns the digest of all bytes written so far.
func (h *HashingSink) Digest() digest.Digest {
	return h.digester.Digest()
}

// Close closes the underlying sink, then persists the sidecar. The sidecar
// is skipped when the underlying close fails, since the file's final state
// is unknown. Subsequent calls are no-ops.
func (h *HashingSink) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.sink.Close(); err != nil {
		return err
	}
	return Store(h.path, h.digester.Digest())
}
