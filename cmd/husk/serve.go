package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meigma/husk"
	"github.com/meigma/husk/serve"
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Preview an artifact's content over HTTP",
	Long: `Serve loads the archive section from a file on disk and serves it the
same way the sealed artifact would serve itself. Useful for checking a
build before deploying it.`,
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

		srv, err := serve.New(serve.Config{
			Addr:    cfg.Addr,
			Archive: husk.NewArchive(idx, src),
			Logger:  slog.Default(),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
