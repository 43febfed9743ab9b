package husk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// combineConfig holds configuration for combining.
type combineConfig struct {
	maxSize int64
}

// CombineOption configures Combine and SealFile.
type CombineOption func(*combineConfig)

// CombineWithMaxSize caps the combined output size in bytes.
// Exceeding the cap fails with ErrStubTooLarge. Zero means no limit.
func CombineWithMaxSize(n int64) CombineOption {
	return func(cfg *combineConfig) {
		cfg.maxSize = n
	}
}

// Combine writes stub followed by archive to dst and returns the total
// bytes written.
//
// The bytes pass through untouched; the archive stays parseable after any
// stub prefix because its trailer records the section's own length, from
// which a reader recovers the section start. The stub may be empty.
func Combine(dst io.Writer, stub, archive io.Reader, opts ...CombineOption) (int64, error) {
	cfg := combineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.maxSize > 0 {
		dst = &cappedWriter{w: dst, remaining: cfg.maxSize}
	}

	stubN, err := io.Copy(dst, stub)
	if err != nil {
		return stubN, fmt.Errorf("copy stub: %w", err)
	}
	archiveN, err := io.Copy(dst, archive)
	if err != nil {
		return stubN + archiveN, fmt.Errorf("copy archive: %w", err)
	}
	return stubN + archiveN, nil
}

// SealFile combines the stub and archive files into a sealed artifact at
// outPath.
//
// The output is written to a temp file and renamed into place, so a
// failed seal never leaves a partial artifact. The result is marked
// executable.
func SealFile(stubPath, archivePath, outPath string, opts ...CombineOption) (int64, error) {
	stub, err := os.Open(stubPath)
	if err != nil {
		return 0, fmt.Errorf("open stub: %w", err)
	}
	defer stub.Close()

	archive, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".husk-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	n, err := Combine(tmp, stub, archive, opts...)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// cappedWriter fails with ErrStubTooLarge once the configured combined
// size would be exceeded.
type cappedWriter struct {
	w         io.Writer
	remaining int64
}

func (cw *cappedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > cw.remaining {
		return 0, ErrStubTooLarge
	}
	n, err := cw.w.Write(p)
	cw.remaining -= int64(n)
	return n, err
}
