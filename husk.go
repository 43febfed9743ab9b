// Package husk implements a random-access archive format that can be
// appended to an arbitrary executable stub, producing a single file that
// is simultaneously a program and the site it serves.
//
// An archive section is a sequence of file records followed by a
// directory and a fixed-size trailer at the absolute end of the file.
// All offsets inside the section are relative to the section start,
// which a reader derives at parse time as fileLen − trailer.arcLen.
// Nothing in the format depends on how many stub bytes precede it.
//
// The package implements fs.FS and related interfaces for stdlib
// compatibility; the serve subpackage builds an HTTP server on top.
package husk

import (
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrInvalidPath is returned when a path cannot be stored in an archive.
	ErrInvalidPath = errors.New("husk: invalid path")

	// ErrDuplicatePath is returned when two input files normalize to the same path.
	ErrDuplicatePath = errors.New("husk: duplicate path")

	// ErrEmptyTree is returned when the input tree contains no regular files.
	ErrEmptyTree = errors.New("husk: empty tree")

	// ErrStubTooLarge is returned when a configured combined-size limit is exceeded.
	ErrStubTooLarge = errors.New("husk: stub too large")

	// ErrCorruptArchive is returned when the trailer or directory fails validation.
	ErrCorruptArchive = errors.New("husk: corrupt archive")

	// ErrChecksum is returned when file content does not match its stored CRC-32.
	ErrChecksum = errors.New("husk: checksum mismatch")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("husk: size overflow")

	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("husk: too many files")
)

// Method identifies how a file's bytes are stored in the archive.
type Method uint8

const (
	MethodStored Method = iota
	MethodDeflate
)

func (m Method) String() string {
	switch m {
	case MethodStored:
		return "stored"
	case MethodDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// Entry represents a file in the archive.
//
// Entries are immutable once written; offsets are relative to the
// archive-section start except where noted.
type Entry struct {
	// Path is the file path relative to the archive root (e.g., "css/site.css").
	Path string

	// Size is the uncompressed length in bytes.
	Size uint64

	// CompressedSize is the stored length of the data bytes.
	// Equal to Size for stored entries.
	CompressedSize uint64

	// Method is the storage encoding for the data bytes.
	Method Method

	// CRC32 is the IEEE CRC-32 of the uncompressed content.
	CRC32 uint32

	// ModTime is the file's modification time, second precision.
	ModTime time.Time

	// Offset is the byte offset of the file record header, relative
	// to the archive-section start.
	Offset uint64

	// dataOffset is the absolute file offset of the data bytes,
	// computed when an Index is loaded. Zero until then.
	dataOffset int64
}

// DataOffset returns the absolute file offset of the entry's data bytes.
// It is only meaningful for entries obtained from an Index.
func (e *Entry) DataOffset() int64 {
	return e.dataOffset
}
