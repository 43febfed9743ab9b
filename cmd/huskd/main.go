// Command huskd is the runtime stub of a sealed artifact.
//
// At startup it opens its own executable, parses the archive section
// appended after the program bytes, and serves that content over HTTP.
// A corrupt self-image aborts before the socket is bound; a partially
// valid archive is never served.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/meigma/husk"
	"github.com/meigma/husk/serve"
)

func main() {
	addr := pflag.String("addr", ":8080", "TCP listen address")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := pflag.String("log-format", "", "log format (text, json); default json when not a terminal")
	shutdownTimeout := pflag.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
	pflag.Parse()

	logger := newLogger(*logLevel, *logFormat)

	if err := run(*addr, *shutdownTimeout, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(addr string, shutdownTimeout time.Duration, logger *slog.Logger) error {
	src, err := husk.OpenSelf()
	if err != nil {
		return fmt.Errorf("open own binary: %w", err)
	}
	defer src.Close()

	idx, err := husk.LoadIndex(src)
	if err != nil {
		return fmt.Errorf("load archive from %s: %w", src.Name(), err)
	}
	logger.Info("archive loaded",
		"binary", src.Name(),
		"entries", idx.Len(),
		"archive_len", idx.ArchiveLen(),
		"base", idx.Base(),
	)

	srv, err := serve.New(serve.Config{
		Addr:            addr,
		Archive:         husk.NewArchive(idx, src),
		Logger:          logger,
		ShutdownTimeout: shutdownTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx)
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	if format == "" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "text"
		} else {
			format = "json"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
}
