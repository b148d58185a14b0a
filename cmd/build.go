package cmd

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render the whole site once",
	Long: `Render every template under the search path into the output directory and
copy every static file. Partials and data files are never rendered directly.

Examples:
  stencil build                   # Build with .stencil.yml settings
  stencil build --config ci.yml   # Build with an alternate config`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	session, err := newSession()
	if err != nil {
		return err
	}
	return session.fullBuild(cmd.Context())
}
