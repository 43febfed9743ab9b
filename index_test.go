package husk

import (
	"encoding/binary"
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawArchive assembles an archive section directly from entries and
// their data, bypassing Pack. Offsets are assigned in order. Tests use
// it to craft directories Pack would never emit.
func rawArchive(t *testing.T, entries []Entry, data [][]byte) []byte {
	t.Helper()
	require.Equal(t, len(entries), len(data))

	var records []byte
	for i := range entries {
		entries[i].Offset = uint64(len(records))
		records = appendRecordHeader(records, &entries[i])
		records = append(records, data[i]...)
	}

	var dir []byte
	for i := range entries {
		dir = appendDirEntry(dir, &entries[i])
	}

	tr := trailer{
		version: FormatVersion,
		count:   uint32(len(entries)),
		dirLen:  uint64(len(dir)),
		arcLen:  uint64(len(records)+len(dir)) + TrailerLen,
		dirCRC:  crc32.ChecksumIEEE(dir),
	}
	out := append(records, dir...)
	return appendTrailer(out, &tr)
}

func testEntry(path string, content []byte) (Entry, []byte) {
	return Entry{
		Path:           path,
		Size:           uint64(len(content)),
		CompressedSize: uint64(len(content)),
		Method:         MethodStored,
		CRC32:          crc32.ChecksumIEEE(content),
		ModTime:        time.Unix(1700000000, 0).UTC(),
	}, content
}

func validRaw(t *testing.T) []byte {
	t.Helper()
	a, ad := testEntry("a.txt", []byte("alpha"))
	b, bd := testEntry("b.txt", []byte("beta"))
	return rawArchive(t, []Entry{a, b}, [][]byte{ad, bd})
}

func TestLoadIndexValid(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	idx, err := LoadIndex(NewBytesSource(data))
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, uint32(FormatVersion), idx.Version())
	assert.Equal(t, uint64(len(data)), idx.ArchiveLen())
	assert.Equal(t, int64(0), idx.Base())

	entry, ok := idx.Lookup("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint64(5), entry.Size)
	// Record: 32-byte header, then the 5-byte path, then data.
	assert.Equal(t, int64(32+5), entry.DataOffset())
}

func TestLoadIndexFileTooSmall(t *testing.T) {
	t.Parallel()

	_, err := LoadIndex(NewBytesSource([]byte("short")))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexTruncatedTrailer(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	_, err := LoadIndex(NewBytesSource(data[:len(data)-1]))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexBadMagic(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	data[len(data)-TrailerLen] ^= 0xFF
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexBadVersion(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	binary.LittleEndian.PutUint32(data[len(data)-TrailerLen+8:], 99)
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexDirectoryBitFlip(t *testing.T) {
	t.Parallel()

	// Any single flipped bit inside the directory must fail the load;
	// the trailer carries a CRC over the directory bytes.
	data := validRaw(t)
	data[len(data)-TrailerLen-1] ^= 0x01
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexArchiveLenOutOfBounds(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	binary.LittleEndian.PutUint64(data[len(data)-16:], uint64(len(data))+1)
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexCountTooLarge(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	binary.LittleEndian.PutUint32(data[len(data)-TrailerLen+12:], 1<<30)
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexNonzeroReserved(t *testing.T) {
	t.Parallel()

	data := validRaw(t)
	data[len(data)-1] = 0x7F
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexUnsortedDirectory(t *testing.T) {
	t.Parallel()

	b, bd := testEntry("b.txt", []byte("beta"))
	a, ad := testEntry("a.txt", []byte("alpha"))
	data := rawArchive(t, []Entry{b, a}, [][]byte{bd, ad})
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexDuplicatePath(t *testing.T) {
	t.Parallel()

	a1, d1 := testEntry("a.txt", []byte("alpha"))
	a2, d2 := testEntry("a.txt", []byte("again"))
	data := rawArchive(t, []Entry{a1, a2}, [][]byte{d1, d2})
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexEntryPastRecordsRegion(t *testing.T) {
	t.Parallel()

	a, ad := testEntry("a.txt", []byte("alpha"))
	a.CompressedSize = 1 << 20 // claims data the section does not hold
	a.Method = MethodDeflate   // dodge the stored size==csize check
	data := rawArchive(t, []Entry{a}, [][]byte{ad})
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexStoredSizeMismatch(t *testing.T) {
	t.Parallel()

	a, ad := testEntry("a.txt", []byte("alpha"))
	a.Size = 99
	data := rawArchive(t, []Entry{a}, [][]byte{ad})
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestLoadIndexInvalidEntryPath(t *testing.T) {
	t.Parallel()

	a, ad := testEntry("../escape", []byte("alpha"))
	data := rawArchive(t, []Entry{a}, [][]byte{ad})
	_, err := LoadIndex(NewBytesSource(data))
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestIndexHasPrefix(t *testing.T) {
	t.Parallel()

	a, ad := testEntry("docs/index.html", []byte("x"))
	b, bd := testEntry("docs/more.html", []byte("y"))
	c, cd := testEntry("index.html", []byte("z"))
	data := rawArchive(t, []Entry{a, b, c}, [][]byte{ad, bd, cd})
	idx, err := LoadIndex(NewBytesSource(data))
	require.NoError(t, err)

	assert.True(t, idx.HasPrefix("docs/"))
	assert.True(t, idx.HasPrefix("index"))
	assert.False(t, idx.HasPrefix("missing/"))
	assert.False(t, idx.HasPrefix("docs/z"))
}
