package commands

import (
	"fmt"
	"strings"

	"simplej/internal/errors"
	"simplej/internal/git"

	"github.com/spf13/cobra"
)

// GitCommands creates the master/dev workflow commands
func GitCommands(project ProjectFunc) []*cobra.Command {
	commands := []*cobra.Command{}

	gitManager := func() (*git.Manager, error) {
		return project().Git()
	}

	// simplej git-start
	startCmd := &cobra.Command{
		Use:   "git-start",
		Short: "Initialize the project repository on master",
		Long: `Initialize a git repository in the project directory, add origin from
git.remote_url, ignore the .simplej directory and commit everything as the
initial commit on master.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			return reportOnly(cmd, gm.Start(cmd.Context()), errors.ErrGitRepoExists)
		},
	}
	commands = append(commands, startCmd)

	// simplej branch
	branchCmd := &cobra.Command{
		Use:   "branch",
		Short: "Create and check out dev from master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			return gm.Branch(cmd.Context())
		},
	}
	commands = append(commands, branchCmd)

	// simplej commit <message>
	commitCmd := &cobra.Command{
		Use:   "commit <message>",
		Short: "Stage all changes and commit them on dev",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			hash, err := gm.Commit(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return reportOnly(cmd, err, errors.ErrNothingToCommit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[dev %s] %s\n", hash[:7], strings.Join(args, " "))
			return nil
		},
	}
	commands = append(commands, commitCmd)

	// simplej merge
	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Check out master and merge dev into it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			return gm.Merge(cmd.Context())
		},
	}
	commands = append(commands, mergeCmd)

	// simplej rollback
	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Check out master and delete dev",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			return gm.Rollback(cmd.Context())
		},
	}
	commands = append(commands, rollbackCmd)

	// simplej push
	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Push all branches to origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			result, err := gm.Push(cmd.Context())
			if err != nil {
				return err
			}
			printPush(cmd, result)
			return nil
		},
	}
	commands = append(commands, pushCmd)

	// simplej commit-push <message>
	commitPushCmd := &cobra.Command{
		Use:   "commit-push <message>",
		Short: "Commit on dev, merge into master and push",
		Long: `Commit all changes on dev, merge dev into master and push every branch to
origin. Nothing happens unless dev is checked out. When there is nothing new to
commit the merge and push still run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			result, err := gm.CommitPush(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printPush(cmd, result)
			return nil
		},
	}
	commands = append(commands, commitPushCmd)

	// simplej status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := gitManager()
			if err != nil {
				return err
			}
			status, err := gm.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), status)
			return nil
		},
	}
	commands = append(commands, statusCmd)

	return commands
}

func printPush(cmd *cobra.Command, result *git.PushResult) {
	out := cmd.OutOrStdout()
	if result.UpToDate {
		fmt.Fprintln(out, "Everything up-to-date")
	} else {
		fmt.Fprintln(out, "Pushed all branches to origin")
	}
	if result.Status != "" {
		fmt.Fprintf(out, "Warning: pushed while on %s\n%s", result.Branch, result.Status)
	}
}
