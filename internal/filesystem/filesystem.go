package filesystem

import (
	"io"
	"os"
	"path/filepath"
)

// File is a destination that chunks can be written into at any offset.
type File interface {
	io.WriterAt
	io.Closer
}

// FileSystem creates transfer destinations.
type FileSystem interface {
	CreateSized(path string, size int64) (File, error)
	FileExists(path string) (bool, error)
}

// OSFileSystem implements the FileSystem interface using OS file operations
type OSFileSystem struct{}

// NewOSFileSystem creates a new OS filesystem
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// CreateSized creates path, truncating any existing content, and extends it
// to size bytes.
func (fs *OSFileSystem) CreateSized(path string, size int64) (File, error) {
	if err := fs.EnsureDirectory(filepath.Dir(path)); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

// EnsureDirectory ensures a directory exists
func (fs *OSFileSystem) EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// FileExists checks if a file exists
func (fs *OSFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
