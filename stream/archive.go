package stream

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OpenArchiveMember selects the extraction strategy for an archive by its
// file extension and returns an unopened source for the contained image.
//
//   - .zip  opens the named member; size comes from the member metadata
//   - .xz   opens an LZMA decompressing stream with the expected size
//   - .gz   opens a gzip decompressing stream with the expected size
//
// expectedSize is the decompressed size supplied by the caller (typically
// from a catalog entry); pass SizeUnknown when none is known. It is ignored
// for zip archives, which store the member size themselves.
//
// An unrecognized extension returns an error wrapping ErrUnsupportedFormat
// that names the offending extension.
func OpenArchiveMember(archivePath, member string, expectedSize int64) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(archivePath)); ext {
	case ".zip":
		return NewZipMemberSource(archivePath, member), nil
	case ".xz":
		return NewXZSource(archivePath, expectedSize), nil
	case ".gz":
		return NewGzipSource(archivePath, expectedSize), nil
	default:
		return nil, fmt.Errorf("%s: %q: %w", archivePath, ext, ErrUnsupportedFormat)
	}
}
