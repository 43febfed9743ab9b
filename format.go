package husk

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Wire format constants. All integers are little-endian.
const (
	// FormatVersion is the current archive format version.
	FormatVersion = 1

	// recordHeaderLen is the fixed part of a file record, before the
	// path bytes and data bytes.
	recordHeaderLen = 32

	// dirEntryFixedLen is the fixed part of a directory entry, before
	// the path bytes. It is the record header plus the record offset.
	dirEntryFixedLen = 40

	// TrailerLen is the exact size of the trailer at end of file.
	TrailerLen = 40
)

// trailerMagic guards the trailer the way the PNG signature guards a PNG:
// a non-ASCII lead byte plus embedded CR/LF catch text-mode mangling and
// truncation.
var trailerMagic = [8]byte{0x89, 'H', 'S', 'K', '\r', '\n', 0x1a, '\n'}

// trailer is the decoded fixed-size record anchoring the directory.
type trailer struct {
	version uint32
	count   uint32
	dirLen  uint64
	arcLen  uint64
	dirCRC  uint32
}

// appendRecordHeader appends the fixed record header and path for e.
// The caller writes the data bytes immediately after.
func appendRecordHeader(buf []byte, e *Entry) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Path)))
	buf = append(buf, byte(e.Method), 0)
	buf = binary.LittleEndian.AppendUint32(buf, e.CRC32)
	buf = binary.LittleEndian.AppendUint64(buf, e.Size)
	buf = binary.LittleEndian.AppendUint64(buf, e.CompressedSize)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.ModTime.Unix()))
	return append(buf, e.Path...)
}

// appendDirEntry appends the directory entry for e.
func appendDirEntry(buf []byte, e *Entry) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Path)))
	buf = append(buf, byte(e.Method), 0)
	buf = binary.LittleEndian.AppendUint32(buf, e.CRC32)
	buf = binary.LittleEndian.AppendUint64(buf, e.Size)
	buf = binary.LittleEndian.AppendUint64(buf, e.CompressedSize)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.ModTime.Unix()))
	buf = binary.LittleEndian.AppendUint64(buf, e.Offset)
	return append(buf, e.Path...)
}

// appendTrailer appends the fixed-size trailer.
func appendTrailer(buf []byte, t *trailer) []byte {
	buf = append(buf, trailerMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, t.version)
	buf = binary.LittleEndian.AppendUint32(buf, t.count)
	buf = binary.LittleEndian.AppendUint64(buf, t.dirLen)
	buf = binary.LittleEndian.AppendUint64(buf, t.arcLen)
	buf = binary.LittleEndian.AppendUint32(buf, t.dirCRC)
	return binary.LittleEndian.AppendUint32(buf, 0)
}

// parseTrailer decodes the trailer from the last TrailerLen bytes of a file.
func parseTrailer(b []byte) (trailer, error) {
	if len(b) != TrailerLen {
		return trailer{}, fmt.Errorf("%w: trailer is %d bytes, want %d", ErrCorruptArchive, len(b), TrailerLen)
	}
	if [8]byte(b[:8]) != trailerMagic {
		return trailer{}, fmt.Errorf("%w: bad magic", ErrCorruptArchive)
	}
	t := trailer{
		version: binary.LittleEndian.Uint32(b[8:12]),
		count:   binary.LittleEndian.Uint32(b[12:16]),
		dirLen:  binary.LittleEndian.Uint64(b[16:24]),
		arcLen:  binary.LittleEndian.Uint64(b[24:32]),
		dirCRC:  binary.LittleEndian.Uint32(b[32:36]),
	}
	if t.version != FormatVersion {
		return trailer{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptArchive, t.version)
	}
	if binary.LittleEndian.Uint32(b[36:40]) != 0 {
		return trailer{}, fmt.Errorf("%w: nonzero reserved trailer bytes", ErrCorruptArchive)
	}
	return t, nil
}

// parseDirEntry decodes one directory entry from the front of b and
// returns it along with the remaining bytes.
func parseDirEntry(b []byte) (Entry, []byte, error) {
	if len(b) < dirEntryFixedLen {
		return Entry{}, nil, fmt.Errorf("%w: truncated directory entry", ErrCorruptArchive)
	}
	pathLen := int(binary.LittleEndian.Uint16(b[0:2]))
	method := Method(b[2])
	if b[3] != 0 {
		return Entry{}, nil, fmt.Errorf("%w: nonzero reserved byte", ErrCorruptArchive)
	}
	if method != MethodStored && method != MethodDeflate {
		return Entry{}, nil, fmt.Errorf("%w: unknown method %d", ErrCorruptArchive, method)
	}
	e := Entry{
		Method:         method,
		CRC32:          binary.LittleEndian.Uint32(b[4:8]),
		Size:           binary.LittleEndian.Uint64(b[8:16]),
		CompressedSize: binary.LittleEndian.Uint64(b[16:24]),
		ModTime:        time.Unix(int64(binary.LittleEndian.Uint64(b[24:32])), 0).UTC(),
		Offset:         binary.LittleEndian.Uint64(b[32:40]),
	}
	if pathLen == 0 {
		return Entry{}, nil, fmt.Errorf("%w: empty path", ErrCorruptArchive)
	}
	if len(b)-dirEntryFixedLen < pathLen {
		return Entry{}, nil, fmt.Errorf("%w: directory entry path out of bounds", ErrCorruptArchive)
	}
	e.Path = string(b[dirEntryFixedLen : dirEntryFixedLen+pathLen])
	return e, b[dirEntryFixedLen+pathLen:], nil
}
