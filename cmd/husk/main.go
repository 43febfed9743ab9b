// Command husk is the build toolchain for sealed site artifacts: it
// packs a rendered file tree into an archive section, seals it behind an
// executable stub, and can inspect, verify, and preview the result.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/meigma/husk/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string

	source    string
	out       string
	stub      string
	addr      string
	compress  bool
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "husk",
	Short: "Build and inspect self-serving site artifacts",
	Long: `husk packs a directory of rendered static files into a random-access
archive and appends it to an executable stub, producing one file that is
both a program and the site it serves.

The archive's trailer records the section's own length, so the stub in
front of it can be any size; the runtime finds its content by reading
the tail of its own binary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		if cmd.Flags().Changed("source") {
			cfg.Source = source
		}
		if cmd.Flags().Changed("out") {
			cfg.Out = out
		}
		if cmd.Flags().Changed("stub") {
			cfg.Stub = stub
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr = addr
		}
		if cmd.Flags().Changed("compress") {
			cfg.Compress = compress
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}

		slog.SetDefault(slog.New(newHandler(cfg.LogLevel, cfg.LogFormat)))
		return nil
	},
}

func newHandler(level, format string) slog.Handler {
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

	if format == "json" {
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	return tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is husk.yaml in pwd)")
	rootCmd.PersistentFlags().StringVarP(&source, "source", "s", "", "rendered site directory to pack")
	rootCmd.PersistentFlags().StringVarP(&out, "out", "o", "", "output path")
	rootCmd.PersistentFlags().StringVar(&stub, "stub", "", "executable stub to seal behind")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address for serve")
	rootCmd.PersistentFlags().BoolVar(&compress, "compress", true, "deflate-compress files that shrink")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
}
