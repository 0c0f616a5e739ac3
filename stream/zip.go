package stream

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// ZipMemberSource exposes the decompressed byte stream of a single member
// inside a zip archive. The size comes from the member's stored metadata.
// Close releases both the member stream and the containing archive.
type ZipMemberSource struct {
	path   string
	member string
	zr     *zip.ReadCloser
	rc     io.ReadCloser
	size   int64
}

// NewZipMemberSource creates a source for the named member of the archive
// at path.
func NewZipMemberSource(path, member string) *ZipMemberSource {
	return &ZipMemberSource{path: path, member: member, size: SizeUnknown}
}

// Open opens the archive and the named member. A missing member or a
// corrupt container fails without holding any resources.
func (s *ZipMemberSource) Open() error {
	zr, err := zip.OpenReader(s.path)
	if err != nil {
		return &OpenError{Target: s.path, Err: err}
	}

	var file *zip.File
	for _, f := range zr.File {
		if f.Name == s.member {
			file = f
			break
		}
	}
	if file == nil {
		zr.Close()
		return &OpenError{Target: s.path, Err: fmt.Errorf("no member %q in archive", s.member)}
	}

	rc, err := file.Open()
	if err != nil {
		zr.Close()
		return &OpenError{Target: s.path, Err: err}
	}

	s.size = int64(file.UncompressedSize64) //nolint:gosec // zip sizes fit int64
	s.zr = zr
	s.rc = rc
	return nil
}

// Read implements io.Reader over the member's decompressed content.
func (s *ZipMemberSource) Read(p []byte) (int, error) {
	return s.rc.Read(p)
}

// Size returns the member's stored decompressed size.
func (s *ZipMemberSource) Size() int64 { return s.size }

// Close closes the member stream, then the archive. Subsequent calls are
// no-ops.
func (s *ZipMemberSource) Close() error {
	var err error
	if s.rc != nil {
		err = s.rc.Close()
		s.rc = nil
	}
	if s.zr != nil {
		if cerr := s.zr.Close(); err == nil {
			err = cerr
		}
		s.zr = nil
	}
	return err
}
