package cmdutil

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the archive's background workers (thumbnails, proxies, fixity) until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h.StartBackgroundWork(ctx, h.ThumbnailHandler, h.ProxyHandler)
			<-ctx.Done()
			return nil
		},
	}
}
