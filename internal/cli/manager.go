// Package cli binds the simplej subcommands to the project collaborators.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"simplej/internal/cli/commands"
	"simplej/internal/logger"
)

// Project is a commands.Project that holds resources until closed
type Project interface {
	commands.Project
	Close() error
}

// Opener opens the project rooted at dir. Nothing should be created until a
// collaborator is requested.
type Opener func(dir string) Project

// Manager handles CLI operations
type Manager struct {
	open    Opener
	project Project
	rootCmd *cobra.Command
}

// New creates a new CLI manager
func New(open Opener) *Manager {
	m := &Manager{
		open: open,
	}

	// Use the root command from root.go
	m.rootCmd = createRootCommand()
	m.rootCmd.PersistentPreRunE = m.before
	m.setupCommands()

	return m
}

// Root returns the root command
func (m *Manager) Root() *cobra.Command {
	return m.rootCmd
}

// Execute executes the CLI with the given arguments
func (m *Manager) Execute(args []string) error {
	return m.ExecuteWithContext(context.Background(), args)
}

// ExecuteWithContext executes the CLI with the given arguments and context.
// The project opened for the command is closed before returning.
func (m *Manager) ExecuteWithContext(ctx context.Context, args []string) error {
	m.rootCmd.SetArgs(args)
	err := m.rootCmd.ExecuteContext(ctx)

	if m.project != nil {
		if closeErr := m.project.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to release project resources")
		}
		m.project = nil
	}

	return commands.HandleError(err)
}

// before applies the global flags and tags the command's log output
func (m *Manager) before(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger.SetVerbose(verbose)

	dir, _ := cmd.Flags().GetString("project-dir")
	m.project = m.open(dir)

	cmd.SetContext(logger.ForOperation(cmd.Context(), cmd.Name()))
	logger.WithContext(cmd.Context()).WithField("dir", m.project.Dir()).Debug("Running command")
	return nil
}

func (m *Manager) current() commands.Project {
	return m.project
}

// setupCommands sets up all CLI commands
func (m *Manager) setupCommands() {
	groups := [][]*cobra.Command{
		commands.ProjectCommands(m.current),
		commands.ImageCommands(m.current),
		commands.ContainerCommands(m.current),
		commands.GitCommands(m.current),
	}
	for _, group := range groups {
		for _, cmd := range group {
			m.rootCmd.AddCommand(cmd)
		}
	}
}
