package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stencilhq/stencil/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch and serve the output with live reload",
	Long: `Everything stencil watch does, plus a local HTTP server over the output
directory. Connected browsers receive a WebSocket push on /ws after every
incremental pass.

Examples:
  stencil serve                   # Serve on localhost:8080
  stencil serve -l debug          # Serve with per-event logging`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Host:     session.cfg.Server.Host,
		Port:     session.cfg.Server.Port,
		OutPath:  session.cfg.Site.OutPath,
		MaxConns: session.cfg.Server.MaxConns,
		Logger:   session.logger,
	})

	notify := func(changed []string) {
		srv.Hub().Broadcast(ctx, changed)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.Start(ctx) })
	eg.Go(func() error { return session.watch(ctx, notify) })
	return eg.Wait()
}
