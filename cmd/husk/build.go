package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/husk"
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Pack a directory and seal it in one step",
	Long: `Build runs pack and seal back to back: the directory is packed into a
temporary archive, sealed behind the configured stub, and published
atomically at the output path. A failure at any step leaves no partial
artifact behind.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Source
		if len(args) == 1 {
			dir = args[0]
		}
		if cfg.Stub == "" {
			return fmt.Errorf("build requires a stub (--stub or husk.yaml)")
		}

		tmp, err := os.CreateTemp("", "husk-archive-*")
		if err != nil {
			return err
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		result, err := packArchive(cmd.Context(), dir, tmpPath)
		if err != nil {
			return err
		}

		n, err := husk.SealFile(cfg.Stub, tmpPath, cfg.Out)
		if err != nil {
			return err
		}
		fmt.Printf("built %s: %d files, %d archive bytes, %d total, %s\n",
			cfg.Out, len(result.Entries), result.ArchiveLen, n, result.Digest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
