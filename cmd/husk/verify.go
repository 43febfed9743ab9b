package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/husk"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check an artifact's structure and checksums",
	Long: `Verify parses the trailer and directory, then reads every entry to EOF
and checks its CRC-32. A sealed artifact that passes verify will serve
every file it was built from, byte for byte.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := husk.OpenFile(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		idx, err := husk.LoadIndex(src)
		if err != nil {
			return err
		}
		if err := husk.NewArchive(idx, src).VerifyAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("ok: %d entries verified\n", idx.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
