package stream

import "os"

// FileSource reads a local file. The size is resolved by stat at Open for
// regular files; pipes and special devices report SizeUnknown.
type FileSource struct {
	path string
	f    *os.File
	size int64
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, size: SizeUnknown}
}

// Open opens the file and resolves its size.
func (s *FileSource) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return &OpenError{Target: s.path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &OpenError{Target: s.path, Err: err}
	}
	if info.Mode().IsRegular() {
		s.size = info.Size()
	}
	s.f = f
	return nil
}

// Read implements io.Reader.
func (s *FileSource) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

// Size returns the file size, or SizeUnknown for non-regular files.
func (s *FileSource) Size() int64 { return s.size }

// Close closes the file. Subsequent calls are no-ops.
func (s *FileSource) Close() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	return f.Close()
}

// FileSink writes a local file or block device. Existing regular files are
// truncated at Open.
type FileSink struct {
	path        string
	f           *os.File
	syncOnClose bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithSyncOnClose flushes written data to stable storage before the sink
// closes. Device targets want this so the kernel's write cache is drained
// before the media is removed.
func WithSyncOnClose(enabled bool) FileSinkOption {
	return func(s *FileSink) {
		s.syncOnClose = enabled
	}
}

// NewFileSink creates a sink for the file or device at path.
func NewFileSink(path string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the destination for writing, creating it if needed.
func (s *FileSink) Open() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &OpenError{Target: s.path, Err: err}
	}
	s.f = f
	return nil
}

// Write writes all of p or returns a *WriteError.
func (s *FileSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if err != nil {
		return n, &WriteError{Target: s.path, Err: err}
	}
	return n, nil
}

// Size reports SizeUnknown; a sink's length is determined by what is
// written to it.
func (s *FileSink) Size() int64 { return SizeUnknown }

// Sync flushes written data to stable storage.
func (s *FileSink) Sync() error {
	if s.f == nil {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		return &WriteError{Target: s.path, Err: err}
	}
	return nil
}

// Close closes the destination, syncing first when configured. Subsequent
// calls are no-ops.
func (s *FileSink) Close() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	var syncErr error
	if s.syncOnClose {
		syncErr = s.Sync()
	}
	s.f = nil
	if err := f.Close(); err != nil {
		return &WriteError{Target: s.path, Err: err}
	}
	return syncErr
}

// Path returns the destination path.
func (s *FileSink) Path() string { return s.path }
