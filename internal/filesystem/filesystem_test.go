package filesystem_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamanBalaji/bsfetch/internal/filesystem"
)

func TestCreateSized(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "subdir", "reads.bin")

	f, err := fs.CreateSized(path, 10)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("xyz"), 7)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc\x00\x00\x00\x00xyz"), got)
}

func TestCreateSizedTruncatesExisting(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "reads.bin")
	require.NoError(t, os.WriteFile(path, []byte("previous content that is long"), 0o644))

	f, err := fs.CreateSized(path, 4)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())
}

func TestCreateSizedZero(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "empty")

	f, err := fs.CreateSized(path, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestCreateSizedBadDirectory(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, nil, 0o644))

	_, err := fs.CreateSized(filepath.Join(parent, "child"), 1)
	assert.Error(t, err)
}

func TestFileExists(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "f")

	exists, err := fs.FileExists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(path, nil, 0o644))

	exists, err = fs.FileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)
}
