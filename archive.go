package husk

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/husk/internal/inflate"
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
)

// Archive provides read access to the files of a loaded archive section.
//
// Archive implements fs.FS, fs.StatFS, and fs.ReadFileFS. It is safe for
// concurrent use: the index is immutable and the byte source only sees
// ReadAt calls.
type Archive struct {
	idx  *Index
	src  ByteSource
	pool *inflate.Pool
}

// NewArchive creates an Archive reading entry data from src using the
// offsets recorded in idx. idx must have been loaded from src.
func NewArchive(idx *Index, src ByteSource) *Archive {
	return &Archive{
		idx:  idx,
		src:  src,
		pool: inflate.NewPool(),
	}
}

// Index returns the archive's index.
func (a *Archive) Index() *Index {
	return a.idx
}

// Open implements fs.FS.
//
// The returned file verifies the CRC-32 as it is drained; a mismatch
// surfaces as ErrChecksum on the read that reaches EOF. Callers must
// read to EOF to get integrity verification.
func (a *Archive) Open(name string) (fs.File, error) {
	if !ValidArchivePath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	entry, ok := a.idx.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return a.OpenEntry(entry), nil
}

// OpenEntry opens a file directly from an index entry, skipping the
// path lookup. The entry must come from this archive's index.
func (a *Archive) OpenEntry(entry *Entry) *File {
	return &File{archive: a, entry: *entry}
}

// Stat implements fs.StatFS.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !ValidArchivePath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	entry, ok := a.idx.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	info, err := newInfo(entry)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

// ReadFile implements fs.ReadFileFS.
//
// The content is decompressed if necessary and verified against its
// stored CRC-32 before being returned.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// readAllWithLimit drains to EOF, which triggers the CRC check.
	size := f.(*File).entry.Size
	content, err := readAllWithLimit(f, size)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return content, nil
}

// VerifyAll reads every entry to EOF, verifying lengths and checksums.
// Entries are checked concurrently; the first failure wins.
func (a *Archive) VerifyAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for entry := range a.idx.Entries() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := a.OpenEntry(&entry)
			defer f.Close()
			if _, err := io.Copy(io.Discard, f); err != nil {
				return fmt.Errorf("verify %s: %w", entry.Path, err)
			}
			return nil
		})
	}
	return g.Wait()
}
