package commands

import (
	"context"

	"simplej/internal/config"
	"simplej/internal/container"
	"simplej/internal/git"
	"simplej/internal/image"
	"simplej/internal/state"
)

// Project gives commands access to the project selected on the command line.
// Collaborators are created on first use, so git commands never need the
// container engine.
type Project interface {
	Dir() string
	Config() (*config.ProjectConfig, error)
	Store(ctx context.Context) (*state.Store, error)
	Containers(ctx context.Context) (*container.Manager, error)
	Images(ctx context.Context) (*image.Provisioner, error)
	Git() (*git.Manager, error)
}

// ProjectFunc returns the project for the current invocation. It is only
// valid once flags have been parsed.
type ProjectFunc func() Project
