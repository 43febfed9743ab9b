package husk

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/meigma/husk/internal/sizing"
)

// Interface compliance.
var _ fs.File = (*File)(nil)

// File streams one entry's content with incremental CRC verification.
//
// Decompression is lazy: nothing is read from the archive until the
// first Read call. The CRC check runs on the read that reaches EOF, so
// callers must drain the file to be sure the content is intact.
type File struct {
	archive *Archive
	entry   Entry

	r         io.Reader
	release   func()
	crc       hash.Hash32
	remaining uint64

	initialized bool
	initErr     error
	verified    bool
	verifyErr   error
}

// init sets up the underlying reader on first use.
func (f *File) init() error {
	if f.initialized {
		return f.initErr
	}
	f.initialized = true

	length, err := sizing.ToInt64(f.entry.CompressedSize, ErrSizeOverflow)
	if err != nil {
		f.initErr = err
		return err
	}
	section := io.NewSectionReader(f.archive.src, f.entry.dataOffset, length)

	switch f.entry.Method {
	case MethodStored:
		f.r = section
		f.release = func() {}
	case MethodDeflate:
		f.r, f.release = f.archive.pool.Get(section)
	default:
		f.initErr = fmt.Errorf("%w: unknown method %d", ErrCorruptArchive, f.entry.Method)
		return f.initErr
	}

	f.crc = crc32.NewIEEE()
	f.remaining = f.entry.Size
	return nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if err := f.init(); err != nil {
		return 0, err
	}
	if f.verified {
		if f.verifyErr != nil {
			return 0, f.verifyErr
		}
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	if f.remaining == 0 {
		return 0, f.finish()
	}
	if uint64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}

	n, err := f.r.Read(p)
	if n > 0 {
		_, _ = f.crc.Write(p[:n])
		f.remaining -= uint64(n)
	}
	if err == io.EOF {
		if f.remaining != 0 {
			f.verified = true
			f.verifyErr = fmt.Errorf("%w: %s truncated with %d bytes missing", ErrCorruptArchive, f.entry.Path, f.remaining)
			return n, f.verifyErr
		}
		if finishErr := f.finish(); finishErr != io.EOF {
			return n, finishErr
		}
		return n, io.EOF
	}
	return n, err
}

// finish runs the end-of-stream checks once all declared bytes are read:
// the stream must be exhausted and the CRC must match.
func (f *File) finish() error {
	if f.verified {
		if f.verifyErr != nil {
			return f.verifyErr
		}
		return io.EOF
	}
	f.verified = true

	var extra [1]byte
	if n, err := f.r.Read(extra[:]); n > 0 || (err != nil && err != io.EOF) {
		f.verifyErr = fmt.Errorf("%w: %s has trailing data", ErrCorruptArchive, f.entry.Path)
		return f.verifyErr
	}
	if f.crc.Sum32() != f.entry.CRC32 {
		f.verifyErr = fmt.Errorf("%w: %s", ErrChecksum, f.entry.Path)
		return f.verifyErr
	}
	return io.EOF
}

// Stat implements fs.File.
func (f *File) Stat() (fs.FileInfo, error) {
	return newInfo(&f.entry)
}

// Close implements fs.File.
func (f *File) Close() error {
	if f.release != nil {
		f.release()
		f.release = nil
		f.r = nil
	}
	return nil
}

// Entry returns the entry this file was opened from.
func (f *File) Entry() *Entry {
	return &f.entry
}

// Info implements fs.FileInfo for archive entries.
type Info struct {
	entry Entry
	size  int64
}

// newInfo creates an Info from an entry.
func newInfo(entry *Entry) (*Info, error) {
	size, err := sizing.ToInt64(entry.Size, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	return &Info{entry: *entry, size: size}, nil
}

func (fi *Info) Name() string { return path.Base(fi.entry.Path) }
func (fi *Info) Size() int64  { return fi.size }

// Mode is synthetic; the archive records no permission bits.
func (fi *Info) Mode() fs.FileMode  { return 0o444 }
func (fi *Info) ModTime() time.Time { return fi.entry.ModTime }
func (fi *Info) IsDir() bool        { return false }
func (fi *Info) Sys() any           { return nil }
