package husk

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/husk/internal/sizing"
)

// PackResult describes a completed archive section.
type PackResult struct {
	// Entries are the packed files in directory order.
	Entries []Entry

	// ArchiveLen is the total archive-section length in bytes,
	// including directory and trailer.
	ArchiveLen int64

	// Digest is the canonical digest of the archive-section bytes.
	Digest digest.Digest
}

// Pack assembles an archive section from the contents of fsys.
//
// Files are written in path-lexicographic order, so packing the same tree
// twice produces byte-identical output. Directories are not recorded;
// symbolic links and other irregular files are skipped.
//
// Each file is stored deflate-compressed only when that is strictly
// smaller than the original; the CRC-32 always covers the uncompressed
// bytes. The directory and trailer are appended after the last record.
//
// The context can be used for cancellation between files.
func Pack(ctx context.Context, fsys fs.FS, w io.Writer, opts ...PackOption) (*PackResult, error) {
	cfg := packConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &packer{cfg: cfg, logger: cfg.logger}
	p.log().Info("packing archive", "compression", !cfg.noCompression)

	paths, err := p.collectPaths(fsys)
	if err != nil {
		return nil, err
	}

	digester := digest.Canonical.Digester()
	cw := &countingWriter{w: io.MultiWriter(w, digester.Hash())}

	entries, err := p.writeRecords(ctx, fsys, cw, paths)
	if err != nil {
		return nil, err
	}

	dir := make([]byte, 0, len(entries)*64)
	for i := range entries {
		dir = appendDirEntry(dir, &entries[i])
	}

	arcLen, ok := sizing.AddUint64(cw.n, uint64(len(dir))+TrailerLen)
	if !ok {
		return nil, ErrSizeOverflow
	}
	t := trailer{
		version: FormatVersion,
		count:   uint32(len(entries)),
		dirLen:  uint64(len(dir)),
		arcLen:  arcLen,
		dirCRC:  crc32.ChecksumIEEE(dir),
	}
	if _, err := cw.Write(dir); err != nil {
		return nil, fmt.Errorf("write directory: %w", err)
	}
	if _, err := cw.Write(appendTrailer(nil, &t)); err != nil {
		return nil, fmt.Errorf("write trailer: %w", err)
	}

	total, err := sizing.ToInt64(cw.n, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	p.log().Debug("archive packed", "file_count", len(entries), "archive_len", total)

	return &PackResult{
		Entries:    entries,
		ArchiveLen: total,
		Digest:     digester.Digest(),
	}, nil
}

// packer holds state for archive assembly.
type packer struct {
	cfg    packConfig
	logger *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// collectPaths walks fsys and returns the normalized paths of all regular
// files, sorted byte-lexicographically.
//
// fs.WalkDir visits entries in directory order, which is not the same as
// full-path order ("a/b" sorts between "a.txt" and "ab.txt"), so the
// collected set is sorted explicitly.
func (p *packer) collectPaths(fsys fs.FS) ([]string, error) {
	maxFiles := p.cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}

	seen := make(map[string]struct{})
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			p.log().Debug("skipped irregular file", "path", path, "mode", d.Type().String())
			return nil
		}

		normalized := NormalizePath(path)
		if !ValidArchivePath(normalized) {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		if _, dup := seen[normalized]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicatePath, normalized)
		}
		seen[normalized] = struct{}{}

		if maxFiles > 0 && len(paths) >= maxFiles {
			return ErrTooManyFiles
		}
		paths = append(paths, normalized)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrEmptyTree
	}

	sort.Strings(paths)
	return paths, nil
}

// writeRecords writes one file record per path and returns the entries
// with their section-relative offsets filled in.
func (p *packer) writeRecords(ctx context.Context, fsys fs.FS, cw *countingWriter, paths []string) ([]Entry, error) {
	maxFileSize := p.cfg.maxFileSize
	if maxFileSize == 0 {
		maxFileSize = DefaultMaxFileSize
	}

	var enc *flate.Writer
	if !p.cfg.noCompression {
		var err error
		enc, err = flate.NewWriter(io.Discard, flate.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("create deflate encoder: %w", err)
		}
	}

	entries := make([]Entry, 0, len(paths))
	var compressed bytes.Buffer
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := p.writeRecord(fsys, cw, enc, &compressed, path, maxFileSize)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", path, err)
		}
		entries = append(entries, entry)

		if p.cfg.progress != nil {
			p.cfg.progress(i+1, len(paths), path)
		}
	}
	return entries, nil
}

// writeRecord writes a single file record and returns its entry.
func (p *packer) writeRecord(fsys fs.FS, cw *countingWriter, enc *flate.Writer, compressed *bytes.Buffer, path string, maxFileSize uint64) (Entry, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, err
	}
	if !info.Mode().IsRegular() {
		return Entry{}, fmt.Errorf("not a regular file")
	}

	content, err := readAllWithLimit(f, maxFileSize)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Path:    path,
		Size:    uint64(len(content)),
		CRC32:   crc32.ChecksumIEEE(content),
		ModTime: info.ModTime().UTC(),
		Method:  MethodStored,
		Offset:  cw.n,
	}

	data := content
	if enc != nil && !shouldSkip(path, info, p.cfg.skipCompression) {
		compressed.Reset()
		enc.Reset(compressed)
		if _, err := enc.Write(content); err != nil {
			return Entry{}, fmt.Errorf("deflate: %w", err)
		}
		if err := enc.Close(); err != nil {
			return Entry{}, fmt.Errorf("deflate: %w", err)
		}
		if compressed.Len() < len(content) {
			entry.Method = MethodDeflate
			data = compressed.Bytes()
		}
	}
	entry.CompressedSize = uint64(len(data))

	if _, err := cw.Write(appendRecordHeader(nil, &entry)); err != nil {
		return Entry{}, err
	}
	if _, err := cw.Write(data); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// readAllWithLimit reads up to maxSize bytes from r, returning
// ErrSizeOverflow if more are available.
func readAllWithLimit(r io.Reader, maxSize uint64) ([]byte, error) {
	limit, err := sizing.ToInt64(maxSize, ErrSizeOverflow)
	if err != nil || limit >= 1<<62 {
		return nil, ErrSizeOverflow
	}
	lr := &io.LimitedReader{R: r, N: limit + 1}
	data, readErr := io.ReadAll(lr)
	if readErr != nil {
		return nil, readErr
	}
	if uint64(len(data)) > maxSize {
		return nil, ErrSizeOverflow
	}
	return data, nil
}

// countingWriter wraps a writer and counts bytes written.
type countingWriter struct {
	w io.Writer
	n uint64
}

// Write implements io.Writer.
func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		if cw.n > ^uint64(0)-uint64(n) {
			return n, ErrSizeOverflow
		}
		cw.n += uint64(n)
	}
	return n, err
}
