// Package testutil builds in-memory archives for tests.
package testutil

import (
	"bytes"
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meigma/husk"
)

// FixedModTime is the modification time given to all test files, so
// assertions about Last-Modified are deterministic.
var FixedModTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Tree converts path→bytes into an fstest.MapFS with a fixed mtime.
func Tree(files map[string][]byte) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for path, data := range files {
		fsys[path] = &fstest.MapFile{Data: data, Mode: 0o644, ModTime: FixedModTime}
	}
	return fsys
}

// PackTree packs files into an archive section and returns its bytes.
func PackTree(tb testing.TB, files map[string][]byte, opts ...husk.PackOption) []byte {
	tb.Helper()
	var buf bytes.Buffer
	_, err := husk.Pack(context.Background(), Tree(files), &buf, opts...)
	require.NoError(tb, err)
	return buf.Bytes()
}

// LoadArchive parses an archive (or sealed artifact) held in memory.
func LoadArchive(tb testing.TB, data []byte) *husk.Archive {
	tb.Helper()
	src := husk.NewBytesSource(data)
	idx, err := husk.LoadIndex(src)
	require.NoError(tb, err)
	return husk.NewArchive(idx, src)
}
