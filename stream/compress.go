package stream

import (
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// XZSource reads the decompressed content of an xz (LZMA2) file. The xz
// container does not record a reliable decompressed size, so the caller
// supplies an expected size; without one the source reports SizeUnknown.
type XZSource struct {
	path string
	size int64
	f    *os.File
	r    *xz.Reader
}

// NewXZSource creates a source for the xz file at path. Pass SizeUnknown
// when no expected decompressed size is available.
func NewXZSource(path string, expectedSize int64) *XZSource {
	if expectedSize < 0 {
		expectedSize = SizeUnknown
	}
	return &XZSource{path: path, size: expectedSize}
}

// Open opens the file and initializes the decompressor.
func (s *XZSource) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return &OpenError{Target: s.path, Err: err}
	}
	r, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return &OpenError{Target: s.path, Err: err}
	}
	s.f = f
	s.r = r
	return nil
}

// Read implements io.Reader over the decompressed content.
func (s *XZSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Size returns the caller-supplied expected size, or SizeUnknown.
func (s *XZSource) Size() int64 { return s.size }

// Close closes the underlying file. Subsequent calls are no-ops.
func (s *XZSource) Close() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	s.r = nil
	return f.Close()
}

// GzipSource reads the decompressed content of a gzip file. Like xz, the
// format header carries no trustworthy decompressed size, so the caller
// supplies one; without it the source reports SizeUnknown.
type GzipSource struct {
	path string
	size int64
	f    *os.File
	zr   *gzip.Reader
}

// NewGzipSource creates a source for the gzip file at path. Pass
// SizeUnknown when no expected decompressed size is available.
func NewGzipSource(path string, expectedSize int64) *GzipSource {
	if expectedSize < 0 {
		expectedSize = SizeUnknown
	}
	return &GzipSource{path: path, size: expectedSize}
}

// Open opens the file and initializes the decompressor.
func (s *GzipSource) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return &OpenError{Target: s.path, Err: err}
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return &OpenError{Target: s.path, Err: err}
	}
	s.f = f
	s.zr = zr
	return nil
}

// Read implements io.Reader over the decompressed content.
func (s *GzipSource) Read(p []byte) (int, error) {
	return s.zr.Read(p)
}

// Size returns the caller-supplied expected size, or SizeUnknown.
func (s *GzipSource) Size() int64 { return s.size }

// Close closes the decompressor, then the file. Subsequent calls are
// no-ops.
func (s *GzipSource) Close() error {
	var err error
	if s.zr != nil {
		err = s.zr.Close()
		s.zr = nil
	}
	if s.f != nil {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
		s.f = nil
	}
	return err
}
