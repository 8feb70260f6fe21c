package commands

import (
	"fmt"

	"simplej/internal/types"

	"github.com/spf13/cobra"
)

// ImageCommands creates the image commands
func ImageCommands(project ProjectFunc) []*cobra.Command {
	commands := []*cobra.Command{}

	// simplej prepare-image
	prepareCmd := &cobra.Command{
		Use:   "prepare-image",
		Short: "Build, pull or look up the project image",
		Long: `Prepare the project image from the source configured in simplej.toml:

  dockerfile   build <context>/<dockerfile>
  dockerhub    pull <name>:<tag>
  url          download a Dockerfile into the build context and build it
  git          shallow clone a repository and build the first Dockerfile found
  local_image  use an image already present in the local engine

The image id is recorded only when the image is ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := project()
			cfg, err := p.Config()
			if err != nil {
				return err
			}
			src, err := cfg.Source()
			if err != nil {
				return err
			}
			provisioner, err := p.Images(cmd.Context())
			if err != nil {
				return err
			}
			img, err := provisioner.PrepareImage(cmd.Context(), src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Image %s ready\n", img.ShortID())
			return nil
		},
	}
	commands = append(commands, prepareCmd)

	// simplej remove-image
	removeCmd := &cobra.Command{
		Use:   "remove-image",
		Short: "Remove the project image and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := project().Containers(cmd.Context())
			if err != nil {
				return err
			}
			id, err := mgr.RemoveImage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed image %s\n", types.ShortID(id))
			return nil
		},
	}
	commands = append(commands, removeCmd)

	return commands
}
