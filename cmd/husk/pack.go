package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meigma/husk"
)

var packCmd = &cobra.Command{
	Use:   "pack [dir]",
	Short: "Pack a directory into a bare archive section",
	Long: `Pack walks a rendered site directory and writes the archive section:
file records in path order, then the directory, then the trailer. The
output is not executable on its own; seal it behind a stub, or serve it
directly with 'husk serve'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Source
		if len(args) == 1 {
			dir = args[0]
		}
		result, err := packArchive(cmd.Context(), dir, cfg.Out)
		if err != nil {
			return err
		}
		fmt.Printf("packed %d files, %d bytes, %s\n", len(result.Entries), result.ArchiveLen, result.Digest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
}

// packArchive packs dir into an archive file at outPath, atomically.
func packArchive(ctx context.Context, dir, outPath string) (*husk.PackResult, error) {
	progress := newPackProgress()
	defer progress.Wait()

	opts := []husk.PackOption{
		husk.PackWithLogger(slog.Default()),
		husk.PackWithSkipCompression(husk.DefaultSkipCompression(128)),
	}
	if !cfg.Compress {
		opts = append(opts, husk.PackWithoutCompression())
	}
	if fn := progress.Func(); fn != nil {
		opts = append(opts, husk.PackWithProgress(fn))
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".husk-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()

	result, err := husk.Pack(ctx, os.DirFS(dir), tmp, opts...)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	return result, nil
}
