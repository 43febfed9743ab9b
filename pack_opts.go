package husk

import (
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// DefaultMaxFileSize is the default per-file size limit (256MB).
const DefaultMaxFileSize = 256 << 20

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc func(path string, info fs.FileInfo) bool

// ProgressFunc receives progress updates during packing.
// done counts files already written out of total.
type ProgressFunc func(done, total int, path string)

// packConfig holds configuration for archive assembly.
type packConfig struct {
	noCompression   bool
	skipCompression []SkipCompressionFunc
	maxFiles        int
	maxFileSize     uint64
	progress        ProgressFunc
	logger          *slog.Logger
}

// PackOption configures archive assembly.
type PackOption func(*packConfig)

// PackWithoutCompression stores every file uncompressed.
func PackWithoutCompression() PackOption {
	return func(cfg *packConfig) {
		cfg.noCompression = true
	}
}

// PackWithSkipCompression adds predicates that decide to store a file
// uncompressed. If any predicate returns true, compression is skipped for
// that file. These checks are on the hot path, so keep them cheap.
func PackWithSkipCompression(fns ...SkipCompressionFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// PackWithMaxFiles limits the number of files included in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func PackWithMaxFiles(n int) PackOption {
	return func(cfg *packConfig) {
		cfg.maxFiles = n
	}
}

// PackWithMaxFileSize limits the uncompressed size of a single file.
// Zero uses DefaultMaxFileSize.
func PackWithMaxFileSize(limit uint64) PackOption {
	return func(cfg *packConfig) {
		cfg.maxFileSize = limit
	}
}

// PackWithProgress registers a callback invoked after each file is written.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.progress = fn
	}
}

// PackWithLogger sets the logger for assembly. Nil discards logs.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}

// DefaultSkipCompression returns a SkipCompressionFunc that skips small
// files and known already-compressed extensions.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(p string, info fs.FileInfo) bool {
		if info != nil && minSize > 0 && info.Size() < minSize {
			return true
		}
		ext := strings.ToLower(path.Ext(p))
		_, ok := defaultSkipCompressionExts[ext]
		return ok
	}
}

// shouldSkip checks if any predicate returns true for the given file.
func shouldSkip(path string, info fs.FileInfo, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(path, info) {
			return true
		}
	}
	return false
}

var defaultSkipCompressionExts = map[string]struct{}{
	".7z":    {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".gif":   {},
	".gz":    {},
	".heic":  {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".mkv":   {},
	".mov":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".pdf":   {},
	".png":   {},
	".rar":   {},
	".tgz":   {},
	".webm":  {},
	".webp":  {},
	".woff":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}
