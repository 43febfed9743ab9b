package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/husk"
)

var sealMaxSize int64

var sealCmd = &cobra.Command{
	Use:   "seal <stub> <archive>",
	Short: "Seal an archive behind an executable stub",
	Long: `Seal concatenates an executable stub and a packed archive into one
artifact. The loader sees the stub at offset zero; the archive reader
finds the trailer at end of file. Both readings coexist because archive
offsets are relative to the section start, not the file start.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []husk.CombineOption
		if sealMaxSize > 0 {
			opts = append(opts, husk.CombineWithMaxSize(sealMaxSize))
		}
		n, err := husk.SealFile(args[0], args[1], cfg.Out, opts...)
		if err != nil {
			return err
		}
		fmt.Printf("sealed %s (%d bytes)\n", cfg.Out, n)
		return nil
	},
}

func init() {
	sealCmd.Flags().Int64Var(&sealMaxSize, "max-size", 0, "fail if the combined artifact exceeds this many bytes")
	rootCmd.AddCommand(sealCmd)
}
