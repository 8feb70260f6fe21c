package app

import (
	"context"
	stderrors "errors"
	"path/filepath"

	"simplej/internal/cli"
	"simplej/internal/config"
	"simplej/internal/container"
	"simplej/internal/errors"
	"simplej/internal/git"
	"simplej/internal/image"
	"simplej/internal/lazy"
	"simplej/internal/state"
)

// EngineFunc connects to the container engine
type EngineFunc func(ctx context.Context) (container.Engine, error)

// App represents the main application
type App struct {
	newEngine EngineFunc
	imageOpts []image.Option
	CLI       *cli.Manager
}

// Option configures an App
type Option func(*App)

// WithEngine replaces the Docker engine, mostly for tests
func WithEngine(fn EngineFunc) Option {
	return func(a *App) {
		a.newEngine = fn
	}
}

// WithImageOptions passes options to every image provisioner the app creates
func WithImageOptions(opts ...image.Option) Option {
	return func(a *App) {
		a.imageOpts = append(a.imageOpts, opts...)
	}
}

// New creates a new application instance
func New(opts ...Option) *App {
	a := &App{
		newEngine: dockerEngine,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.CLI = cli.New(a.Open)
	return a
}

// Run starts the application
func (a *App) Run(args []string) error {
	return a.RunWithContext(context.Background(), args)
}

// RunWithContext runs one command with a context for cancellation
func (a *App) RunWithContext(ctx context.Context, args []string) error {
	// Show help if no arguments provided
	if len(args) == 0 {
		return a.CLI.ExecuteWithContext(ctx, []string{"--help"})
	}
	return a.CLI.ExecuteWithContext(ctx, args)
}

// dockerEngine connects to the Docker daemon from the environment and checks
// that it answers
func dockerEngine(ctx context.Context) (container.Engine, error) {
	engine, err := container.NewDockerEngine("")
	if err != nil {
		return nil, container.HandleError(ctx, err, "connect")
	}
	if err := engine.Ping(ctx); err != nil {
		engine.Close()
		return nil, container.HandleError(ctx, err, "ping")
	}
	return engine, nil
}

// Open returns the project rooted at dir. Its collaborators are created on
// first use.
func (a *App) Open(dir string) cli.Project {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	p := &Project{dir: dir, imageOpts: a.imageOpts}
	p.config = lazy.New(func(ctx context.Context) (*config.ProjectConfig, error) {
		cfg, err := config.Load(p.dir)
		if err != nil {
			return nil, err
		}
		if !cfg.Loaded() && !state.Exists(p.dir) {
			return nil, errors.ProjectNotInitialized(p.dir)
		}
		return cfg, nil
	})
	p.store = lazy.New(func(ctx context.Context) (*state.Store, error) {
		cfg, err := p.Config()
		if err != nil {
			return nil, err
		}
		return state.Open(ctx, cfg.Dir())
	})
	p.engine = lazy.New(func(ctx context.Context) (container.Engine, error) {
		return a.newEngine(ctx)
	})
	return p
}

// Project is one project directory with its lazily created collaborators
type Project struct {
	dir       string
	imageOpts []image.Option
	config    *lazy.Lazy[*config.ProjectConfig]
	store     *lazy.Lazy[*state.Store]
	engine    *lazy.Lazy[container.Engine]
}

// Dir returns the absolute project directory
func (p *Project) Dir() string {
	return p.dir
}

// Config loads the project configuration. A directory with neither a config
// file nor project state is not a project.
func (p *Project) Config() (*config.ProjectConfig, error) {
	return p.config.Get(context.Background())
}

// Store opens the project state
func (p *Project) Store(ctx context.Context) (*state.Store, error) {
	return p.store.Get(ctx)
}

// Containers returns the container lifecycle manager
func (p *Project) Containers(ctx context.Context) (*container.Manager, error) {
	cfg, store, engine, err := p.engineDeps(ctx)
	if err != nil {
		return nil, err
	}
	return container.New(cfg, engine, store), nil
}

// Images returns the image provisioner
func (p *Project) Images(ctx context.Context) (*image.Provisioner, error) {
	cfg, store, engine, err := p.engineDeps(ctx)
	if err != nil {
		return nil, err
	}
	return image.New(cfg, engine, store, p.imageOpts...), nil
}

func (p *Project) engineDeps(ctx context.Context) (*config.ProjectConfig, *state.Store, container.Engine, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := p.Store(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, err := p.engine.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, engine, nil
}

// Git returns the git workflow manager
func (p *Project) Git() (*git.Manager, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	return git.New(cfg), nil
}

// Close releases the state store and the engine connection if they were opened
func (p *Project) Close() error {
	var errs []error
	if store, ok := p.store.Peek(); ok {
		errs = append(errs, store.Close())
	}
	if engine, ok := p.engine.Peek(); ok {
		errs = append(errs, engine.Close())
	}
	return stderrors.Join(errs...)
}
