package husk

import (
	"fmt"
	"hash/crc32"
	"iter"
	"sort"

	"github.com/meigma/husk/internal/sizing"
)

// Index is the in-memory directory of an archive section.
//
// An Index is built once, before any request is served, and never mutated
// afterwards; concurrent readers need no locking. Entries are sorted by
// path, enabling binary-search lookups and prefix probes.
type Index struct {
	entries []Entry
	byPath  map[string]*Entry
	base    int64
	arcLen  uint64
	version uint32
}

// LoadIndex locates and parses the trailer and directory at the end of
// src, validating every entry against the measured archive-section
// bounds. Any inconsistency fails with ErrCorruptArchive; a partially
// valid archive is never returned.
//
// The archive-section start is derived as src.Size() − trailer.arcLen,
// so the amount of stub data preceding the section is irrelevant.
func LoadIndex(src ByteSource) (*Index, error) {
	fileLen := src.Size()
	if fileLen < TrailerLen {
		return nil, fmt.Errorf("%w: file is %d bytes, smaller than trailer", ErrCorruptArchive, fileLen)
	}

	tb := make([]byte, TrailerLen)
	if _, err := src.ReadAt(tb, fileLen-TrailerLen); err != nil {
		return nil, fmt.Errorf("read trailer: %w", err)
	}
	t, err := parseTrailer(tb)
	if err != nil {
		return nil, err
	}

	if t.arcLen < TrailerLen || t.arcLen > uint64(fileLen) {
		return nil, fmt.Errorf("%w: archive length %d outside file of %d bytes", ErrCorruptArchive, t.arcLen, fileLen)
	}
	if t.dirLen > t.arcLen-TrailerLen {
		return nil, fmt.Errorf("%w: directory length %d exceeds archive section", ErrCorruptArchive, t.dirLen)
	}
	// Each directory entry is at least the fixed part plus one path byte.
	if uint64(t.count)*(dirEntryFixedLen+1) > t.dirLen {
		return nil, fmt.Errorf("%w: %d entries cannot fit in %d directory bytes", ErrCorruptArchive, t.count, t.dirLen)
	}

	base := fileLen - int64(t.arcLen)
	recordsLen := t.arcLen - t.dirLen - TrailerLen

	dirLen, err := sizing.ToInt(t.dirLen, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	dir := make([]byte, dirLen)
	if _, err := src.ReadAt(dir, fileLen-TrailerLen-int64(dirLen)); err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	if crc32.ChecksumIEEE(dir) != t.dirCRC {
		return nil, fmt.Errorf("%w: directory checksum mismatch", ErrCorruptArchive)
	}

	idx := &Index{
		entries: make([]Entry, 0, t.count),
		byPath:  make(map[string]*Entry, t.count),
		base:    base,
		arcLen:  t.arcLen,
		version: t.version,
	}

	rest := dir
	prevPath := ""
	for i := uint32(0); i < t.count; i++ {
		var e Entry
		e, rest, err = parseDirEntry(rest)
		if err != nil {
			return nil, err
		}
		if err := validateEntry(&e, recordsLen); err != nil {
			return nil, err
		}
		// Strict ordering doubles as the duplicate check; the builder
		// already guarantees both, but a corrupt or hand-crafted
		// directory must not get past here.
		if i > 0 && e.Path <= prevPath {
			return nil, fmt.Errorf("%w: directory not sorted at %q", ErrCorruptArchive, e.Path)
		}
		prevPath = e.Path

		e.dataOffset = base + int64(e.Offset) + recordHeaderLen + int64(len(e.Path))
		idx.entries = append(idx.entries, e)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing directory bytes", ErrCorruptArchive, len(rest))
	}

	for i := range idx.entries {
		idx.byPath[idx.entries[i].Path] = &idx.entries[i]
	}
	return idx, nil
}

// validateEntry checks that an entry's record fits the records region.
func validateEntry(e *Entry, recordsLen uint64) error {
	if !ValidArchivePath(e.Path) {
		return fmt.Errorf("%w: invalid path %q", ErrCorruptArchive, e.Path)
	}
	if e.Method == MethodStored && e.CompressedSize != e.Size {
		return fmt.Errorf("%w: stored entry %q has size mismatch", ErrCorruptArchive, e.Path)
	}

	recordLen := uint64(recordHeaderLen + len(e.Path))
	recordLen, ok := sizing.AddUint64(recordLen, e.CompressedSize)
	if !ok {
		return fmt.Errorf("%w: entry %q overflows", ErrCorruptArchive, e.Path)
	}
	end, ok := sizing.AddUint64(e.Offset, recordLen)
	if !ok || end > recordsLen {
		return fmt.Errorf("%w: entry %q extends past records region", ErrCorruptArchive, e.Path)
	}
	return nil
}

// Lookup returns the entry for the given path.
func (idx *Index) Lookup(path string) (*Entry, bool) {
	e, ok := idx.byPath[path]
	return e, ok
}

// HasPrefix reports whether any entry's path starts with prefix.
func (idx *Index) HasPrefix(prefix string) bool {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Path >= prefix
	})
	return i < len(idx.entries) && len(idx.entries[i].Path) >= len(prefix) &&
		idx.entries[i].Path[:len(prefix)] == prefix
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns an iterator over all entries in path order.
func (idx *Index) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range idx.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Version returns the archive format version from the trailer.
func (idx *Index) Version() uint32 {
	return idx.version
}

// ArchiveLen returns the total archive-section length in bytes.
func (idx *Index) ArchiveLen() uint64 {
	return idx.arcLen
}

// Base returns the absolute file offset of the archive-section start.
func (idx *Index) Base() int64 {
	return idx.base
}
