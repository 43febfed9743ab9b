package husk

import (
	"io/fs"
	"strings"
)

// maxPathLen is the longest path the wire format can record (uint16 length).
const maxPathLen = 0xFFFF

// NormalizePath converts a user-provided path to archive form.
//
// It performs the following transformations:
//   - Strips leading slashes: "/css/site.css" → "css/site.css"
//   - Strips trailing slashes: "css/" → "css"
//   - Collapses consecutive slashes: "css//site.css" → "css/site.css"
//   - Converts empty string to root: "" → "."
//
// Note: This function does not validate path elements. Paths containing
// "." or ".." elements are preserved and rejected by ValidArchivePath.
func NormalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}

	// Collapse consecutive slashes by splitting and rejoining.
	// This removes empty segments but preserves "." and ".." elements.
	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// ValidArchivePath reports whether p can name a file in an archive.
//
// Valid paths are non-empty, slash-separated, already normalized, contain
// no "." or ".." elements, and fit the wire format's path length field.
// The root "." is not a file and is rejected.
func ValidArchivePath(p string) bool {
	if p == "" || p == "." || len(p) > maxPathLen {
		return false
	}
	return fs.ValidPath(p)
}
