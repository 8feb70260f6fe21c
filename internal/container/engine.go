// Package container drives the project's single container through its
// lifecycle on a container engine and keeps the project record in step.
package container

import (
	"context"
	"time"

	"simplej/internal/types"
)

// Engine is the subset of a container engine simplej needs
type Engine interface {
	// Ping checks the engine is reachable
	Ping(ctx context.Context) error

	// Pull fetches name:tag from a registry and returns the local image
	Pull(ctx context.Context, name, tag string) (*types.Image, error)
	// Build builds an image from a context directory
	Build(ctx context.Context, opts BuildOptions) (*types.Image, error)
	// GetImage looks up a local image by id or reference
	GetImage(ctx context.Context, ref string) (*types.Image, error)
	// RemoveImage deletes a local image
	RemoveImage(ctx context.Context, id string) error

	// Run creates and starts a detached container. A container that was
	// created but failed to start is removed again before Run returns.
	Run(ctx context.Context, cfg *RunConfig) (*types.Container, error)
	// GetContainer returns the live view of a container
	GetContainer(ctx context.Context, id string) (*types.Container, error)
	Start(ctx context.Context, id string) error
	// Stop asks the container to stop, killing it after timeout
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Remove(ctx context.Context, id string) error
	// Exec runs cmd inside a running container and returns its stdout
	Exec(ctx context.Context, id string, cmd []string) ([]byte, error)

	Close() error
}

// BuildOptions configures an image build
type BuildOptions struct {
	ContextDir string
	Dockerfile string // relative to ContextDir
	Tag        string
	Output     func(line string)
}

// Mount binds a host path into the container
type Mount struct {
	HostPath      string
	ContainerPath string
}

// RunConfig describes the container created by run-container
type RunConfig struct {
	Name   string
	Image  string
	Mounts []Mount
	Ports  []int // published on the same host port
	Labels map[string]string
}
