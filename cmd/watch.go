package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch for file changes and re-render affected pages",
	Long: `Render the site, build the dependency graph, then watch the search path and
incrementally re-render. Editing a page re-renders that page; editing a
partial or data file re-renders every page that depends on it; editing a
static file re-copies it.

Examples:
  stencil watch                   # Watch with .stencil.yml settings
  stencil watch -l debug          # Watch with per-event logging`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return session.watch(ctx, nil)
}
