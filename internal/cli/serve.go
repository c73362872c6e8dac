package cli

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/api"
)

func newServeCmd(rc *RootConfig) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded runs over HTTP",
		Long: `Serve exposes the SQLite journal as a read-mostly JSON API:

  GET    /health
  GET    /api/runs[?limit=N]
  GET    /api/runs/:id
  DELETE /api/runs/:id
  GET    /api/runs/:id/equity
  GET    /api/runs/:id/fills
  GET    /api/runs/:id/trades
  GET    /api/runs/:id/drawdown
  GET    /api/runs/:id/org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			gin.SetMode(gin.ReleaseMode)
			srv := api.NewServer(j, addr, rc.Logger)

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
				rc.Logger.Info("shutting down")
				return srv.Shutdown(context.WithoutCancel(cmd.Context()))
			}
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")

	return cmd
}
