// Package serve turns a loaded husk archive into an HTTP static site.
//
// A Router maps request methods and paths onto index entries without
// touching the archive's data bytes; the Server streams resolved bodies
// and owns the listener lifecycle.
package serve

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meigma/husk"
)

// IndexDocument is the fallback document appended to directory paths.
const IndexDocument = "index.html"

// Decision is the outcome of resolving a request against the index.
// It carries everything needed to write the response head; the body, if
// any, is read later from Entry.
type Decision struct {
	Status        int
	Entry         *husk.Entry
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time

	// Location is set for redirects.
	Location string

	// Allow is set for 405 responses.
	Allow string
}

// Router resolves request paths against an immutable index.
type Router struct {
	idx *husk.Index
}

// NewRouter creates a Router over idx.
func NewRouter(idx *husk.Index) *Router {
	return &Router{idx: idx}
}

// Resolve maps a method and raw request path to a response decision.
//
// Only GET and HEAD are content operations. Paths are normalized with
// the same rules the assembler applied at build time; a path ending in
// "/" falls back to its index document, and a path that names a
// directory without the trailing slash redirects to the slashed form.
// Resolve performs no I/O.
func (rt *Router) Resolve(method, rawPath string) Decision {
	if method != http.MethodGet && method != http.MethodHead {
		return Decision{Status: http.StatusMethodNotAllowed, Allow: "GET, HEAD"}
	}

	trailingSlash := rawPath == "" || strings.HasSuffix(rawPath, "/")
	p := husk.NormalizePath(rawPath)

	lookup := p
	switch {
	case p == ".":
		lookup = IndexDocument
	case trailingSlash:
		lookup = p + "/" + IndexDocument
	}
	if !husk.ValidArchivePath(lookup) {
		return Decision{Status: http.StatusNotFound}
	}

	if entry, ok := rt.idx.Lookup(lookup); ok {
		return rt.found(entry)
	}

	// "/docs" when only "docs/..." entries exist: send the client to the
	// slashed form so relative links inside the index document resolve.
	if !trailingSlash && rt.idx.HasPrefix(p+"/") {
		return Decision{Status: http.StatusMovedPermanently, Location: "/" + p + "/"}
	}

	return Decision{Status: http.StatusNotFound}
}

// found builds the 200 decision for an entry.
func (rt *Router) found(entry *husk.Entry) Decision {
	return Decision{
		Status:        http.StatusOK,
		Entry:         entry,
		ContentType:   contentTypeFor(entry.Path),
		ContentLength: int64(entry.Size),
		ETag:          etagFor(entry),
		LastModified:  entry.ModTime,
	}
}

// etagFor derives a strong validator from metadata already in the
// directory: the content CRC plus the length.
func etagFor(entry *husk.Entry) string {
	return fmt.Sprintf("\"%08x-%x\"", entry.CRC32, entry.Size)
}
