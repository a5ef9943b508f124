package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docproc/internal/shared/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close(contextOf(cmd))

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, server.Addr(app.Config.Port), app.Router)
		},
	}
}
