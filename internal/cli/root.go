package cli

import (
	"github.com/spf13/cobra"
)

// createRootCommand creates the root command with global flags
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simplej",
		Short: "Notebook project manager for Docker images, containers and a master/dev git workflow",
		Long: `simplej manages a notebook project: it prepares the project's Docker image
from a Dockerfile, Docker Hub, a URL, a git repository or an existing local
image, runs the project container with the project directory mounted, and keeps
edits on a dev branch that is merged into master and pushed to origin.

Project settings live in simplej.toml; recorded image and container ids live in
.simplej/state.db.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to showing help if no subcommand
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().StringP("project-dir", "C", ".", "Project directory")

	return rootCmd
}
