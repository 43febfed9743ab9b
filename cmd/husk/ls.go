package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meigma/husk"
)

var lsCmd = &cobra.Command{
	Use:   "ls <file>",
	Short: "List the entries of an archive or sealed artifact",
	Long: `List prints one line per entry from the archive directory. The file may
be a bare archive or a sealed artifact; the trailer is found the same
way in both.`,
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

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tMETHOD\tSIZE\tSTORED\tMODIFIED")
		for e := range idx.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				e.Path, e.Method, e.Size, e.CompressedSize, e.ModTime.Format("2006-01-02 15:04:05"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d entries, archive section %d bytes (starts at offset %d)\n",
			idx.Len(), idx.ArchiveLen(), idx.Base())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
