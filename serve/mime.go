package serve

import (
	"path"
	"strings"
)

// defaultContentType is used for extensions not in the table.
const defaultContentType = "application/octet-stream"

// contentTypes maps file extensions to Content-Type values. The table is
// fixed: content negotiation and sniffing are out of scope, and the set
// of types a rendered site emits is small and known.
var contentTypes = map[string]string{
	".atom":  "application/atom+xml",
	".avif":  "image/avif",
	".css":   "text/css; charset=utf-8",
	".eot":   "application/vnd.ms-fontobject",
	".gif":   "image/gif",
	".htm":   "text/html; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".ico":   "image/x-icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".md":    "text/markdown; charset=utf-8",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".ogg":   "audio/ogg",
	".otf":   "font/otf",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".rss":   "application/rss+xml",
	".svg":   "image/svg+xml",
	".ttf":   "font/ttf",
	".txt":   "text/plain; charset=utf-8",
	".wasm":  "application/wasm",
	".webm":  "video/webm",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".xml":   "application/xml",
}

// contentTypeFor returns the Content-Type for an archive path based on
// its extension.
func contentTypeFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return defaultContentType
}
