package commands

import (
	"fmt"
	"sort"

	"simplej/internal/errors"
	"simplej/internal/logger"
	"simplej/internal/types"

	"github.com/spf13/cobra"
)

// ContainerCommands creates the container lifecycle commands
func ContainerCommands(project ProjectFunc) []*cobra.Command {
	commands := []*cobra.Command{}

	// simplej run-container
	runCmd := &cobra.Command{
		Use:   "run-container",
		Short: "Create or start the project container",
		Long: `Start the project container. A recorded container is started again when
it is stopped; otherwise a new container is created from the recorded image,
with the project directory mounted and the notebook and service ports published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := project().Containers(cmd.Context())
			if err != nil {
				return err
			}
			c, err := mgr.Run(cmd.Context())
			if err != nil {
				return err
			}
			printContainer(cmd, c)
			return nil
		},
	}
	commands = append(commands, runCmd)

	// simplej stop-container
	stopCmd := &cobra.Command{
		Use:   "stop-container",
		Short: "Stop the project container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := project().Containers(cmd.Context())
			if err != nil {
				return err
			}
			status, err := mgr.Stop(cmd.Context())
			if err != nil {
				return reportOnly(cmd, err, errors.ErrContainerNotRunning)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Container status: %s\n", status)
			return nil
		},
	}
	commands = append(commands, stopCmd)

	// simplej remove-container
	removeCmd := &cobra.Command{
		Use:   "remove-container",
		Short: "Remove the project container and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := project().Containers(cmd.Context())
			if err != nil {
				return err
			}
			id, err := mgr.Remove(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed container %s\n", types.ShortID(id))
			return nil
		},
	}
	commands = append(commands, removeCmd)

	// simplej show-token
	tokenCmd := &cobra.Command{
		Use:   "show-token",
		Short: "Show the notebook server URL and access token",
		Long: `Ask the notebook server running in the project container for its access
token and print a URL that opens it from the host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := project()
			mgr, err := p.Containers(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := p.Config()
			if err != nil {
				return err
			}
			servers, err := mgr.Token(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range servers {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", s.HostURL(cfg.Container.NotebookPort))
				logger.WithContext(cmd.Context()).WithFields(logger.Fields{
					"token": s.Token,
					"dir":   s.Dir,
				}).Debug("Notebook server")
			}
			return nil
		},
	}
	commands = append(commands, tokenCmd)

	// simplej all-up
	allUpCmd := &cobra.Command{
		Use:   "all-up",
		Short: "Prepare the image, then run the container",
		Args:  cobra.NoArgs,
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
			mgr, err := p.Containers(cmd.Context())
			if err != nil {
				return err
			}
			c, err := mgr.AllUp(cmd.Context(), provisioner, src)
			if err != nil {
				return err
			}
			printContainer(cmd, c)
			return nil
		},
	}
	commands = append(commands, allUpCmd)

	// simplej destroy
	destroyCmd := &cobra.Command{
		Use:   "destroy",
		Short: "Stop and remove the container, then remove the image",
		Long: `Stop the project container, remove it and remove the project image. Every
step is attempted even when an earlier one fails; the failures are reported
together at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := project().Containers(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.Destroy(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Project container and image removed")
			return nil
		},
	}
	commands = append(commands, destroyCmd)

	return commands
}

func printContainer(cmd *cobra.Command, c *types.Container) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Container %s (%s) is %s\n", c.Name, c.ShortID(), c.Status)

	ports := make([]string, 0, len(c.Ports))
	for containerPort := range c.Ports {
		ports = append(ports, containerPort)
	}
	sort.Strings(ports)
	for _, port := range ports {
		fmt.Fprintf(out, "  %s -> %s\n", c.Ports[port], port)
	}
}
