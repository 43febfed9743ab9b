package husk

import (
	"bytes"
	"fmt"
	"os"
)

// ByteSource provides random access to a sealed artifact or bare archive.
//
// Implementations must be safe for concurrent ReadAt calls; os.File is.
type ByteSource interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// FileSource is a ByteSource backed by an open file.
// os.File has ReadAt but not Size, so the size is cached at construction.
type FileSource struct {
	file *os.File
	size int64
}

// OpenFile opens the file at path as a ByteSource.
// The caller must Close the source when done.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := NewFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// OpenSelf opens the running process's own executable as a ByteSource.
// This is how a sealed artifact reaches its appended archive section.
func OpenSelf() (*FileSource, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return OpenFile(exe)
}

// NewFileSource wraps an already-open file.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	return &FileSource{file: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the total file size.
func (s *FileSource) Size() int64 {
	return s.size
}

// Name returns the underlying file's path.
func (s *FileSource) Name() string {
	return s.file.Name()
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.file.Close()
}

// BytesSource is an in-memory ByteSource.
type BytesSource struct {
	r *bytes.Reader
}

// NewBytesSource creates a ByteSource over b.
func NewBytesSource(b []byte) *BytesSource {
	return &BytesSource{r: bytes.NewReader(b)}
}

// ReadAt implements io.ReaderAt.
func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

// Size returns the length of the underlying bytes.
func (s *BytesSource) Size() int64 {
	return s.r.Size()
}

// Interface compliance.
var (
	_ ByteSource = (*FileSource)(nil)
	_ ByteSource = (*BytesSource)(nil)
)
