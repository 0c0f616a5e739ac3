package stream

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	t.Parallel()

	content := []byte("imaging test content")
	path := filepath.Join(t.TempDir(), "data.img")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	src := NewFileSource(path)
	require.NoError(t, src.Open())

	assert.Equal(t, int64(len(content)), src.Size())

	got, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close(), "close must be idempotent")
}

func TestFileSourceMissing(t *testing.T) {
	t.Parallel()

	src := NewFileSource(filepath.Join(t.TempDir(), "missing.img"))
	err := src.Open()
	require.Error(t, err)

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Contains(t, openErr.Target, "missing.img")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, src.Close(), "close after failed open must be safe")
}

func TestFileSourceSizeBeforeOpen(t *testing.T) {
	t.Parallel()

	src := NewFileSource("whatever")
	assert.Equal(t, SizeUnknown, src.Size())
}

func TestFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.img")

	sink := NewFileSink(path)
	require.NoError(t, sink.Open())

	n, err := sink.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = sink.Write([]byte("world"))
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)
}

func TestFileSinkTruncatesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.img")
	require.NoError(t, os.WriteFile(path, []byte("previous much longer content"), 0o644))

	sink := NewFileSink(path)
	require.NoError(t, sink.Open())
	_, err := sink.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestFileSinkOpenPermissionDenied(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	sink := NewFileSink(filepath.Join(dir, "out.img"))
	err := sink.Open()
	require.Error(t, err)

	var openErr *OpenError
	assert.ErrorAs(t, err, &openErr)
}

func TestFileSinkSyncOnClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.img")
	sink := NewFileSink(path, WithSyncOnClose(true))
	require.NoError(t, sink.Open())
	_, err := sink.Write([]byte("synced"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("synced"), got)
}

func TestWriteErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("device full")
	err := &WriteError{Target: "/dev/sdx", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/dev/sdx")
}
