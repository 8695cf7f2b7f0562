package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"paper-trader/internal/feed"
	"paper-trader/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the paper trading HTTP API with a background spot price poller.
The server keeps running until interrupted (Ctrl+C) or terminated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			poller := feed.NewPoller(feed.PollerConfig{
				Interval: app.Config.Feed.PollInterval,
				Symbols:  app.Config.Feed.Symbols,
			}, app.Feed, app.Logger)
			poller.SetSessionOffset(app.Config.Trading.SessionOffsetMinutes)
			go poller.Start(ctx)

			srv := server.New(server.Config{
				Addr:            addr,
				InitialBalance:  app.Config.Trading.InitialBalance,
				ShutdownTimeout: app.Config.Server.ShutdownTimeout,
			}, app.Desk, app.Feed, poller, app.Logger)
			srv.SetSessionOffset(app.Config.Trading.SessionOffsetMinutes)

			app.Logger.Info().Str("addr", addr).Msg("Starting paper trading server")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	return cmd
}
