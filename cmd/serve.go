package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trustlab/internal/bootstrap"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
	"trustlab/internal/transport/httpapi"
	"trustlab/internal/usecase/labvalidation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the validation HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *labvalidation.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		server := httpapi.NewServer(addr, httpapi.NewRouter(svc)).
			WithShutdownTimeout(app.Config.HTTP.ShutdownTimeout)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Run(gctx)
		})
		if app.Catalog != nil {
			g.Go(func() error {
				return app.Catalog.Run(gctx)
			})
		}

		if err := g.Wait(); err != nil {
			logging.Error(ctx, "serve failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: http.addr from config)")
}
