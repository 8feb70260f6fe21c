package commands

import (
	"fmt"
	"io"
	"os"

	"simplej/internal/config"
	"simplej/internal/constants"
	"simplej/internal/container"
	"simplej/internal/git"
	"simplej/internal/logger"
	"simplej/internal/state"
	"simplej/internal/types"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ProjectCommands creates the project setup and inspection commands
func ProjectCommands(project ProjectFunc) []*cobra.Command {
	commands := []*cobra.Command{}

	// simplej new-project
	newCmd := &cobra.Command{
		Use:   "new-project",
		Short: "Create a project in the project directory",
		Long: `Create a simplej project in the project directory (the current directory
unless --project-dir is given): write simplej.toml and a starter Dockerfile and
create the empty project state. Existing files are left alone.

With --clone the directory is first populated from an existing repository.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cloneURL, _ := cmd.Flags().GetString("clone")
			return newProject(cmd, project(), cloneURL)
		},
	}
	newCmd.Flags().String("clone", "", "Clone this repository into the project directory first")
	commands = append(commands, newCmd)

	// simplej project-info
	infoCmd := &cobra.Command{
		Use:   "project-info",
		Short: "Show configuration, recorded state and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := collectInfo(cmd, project())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(info); err != nil {
				return fmt.Errorf("failed to render project info: %w", err)
			}
			return enc.Close()
		},
	}
	commands = append(commands, infoCmd)

	return commands
}

func newProject(cmd *cobra.Command, p Project, cloneURL string) error {
	ctx := cmd.Context()
	log := logger.WithContext(ctx)
	dir := p.Dir()

	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	if cloneURL != "" {
		var progress io.Writer
		if logger.IsDebug() {
			progress = cmd.ErrOrStderr()
		}
		if err := git.CloneRepository(ctx, cloneURL, dir, progress); err != nil {
			return err
		}
	}

	written, err := config.WriteTemplate(dir)
	if err != nil {
		return err
	}
	for _, path := range written {
		log.WithField("path", path).Info("Created file")
	}

	store, err := p.Store(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Project ready in %s (state: %s)\n", dir, store.Location())
	return nil
}

// projectInfo is what project-info prints
type projectInfo struct {
	Project   string         `yaml:"project"`
	Dir       string         `yaml:"dir"`
	Config    string         `yaml:"config,omitempty"`
	Image     imageInfo      `yaml:"image"`
	Container *containerInfo `yaml:"container,omitempty"`
	Git       *gitInfo       `yaml:"git,omitempty"`
	Events    []state.Event  `yaml:"events,omitempty"`
}

type imageInfo struct {
	Source string   `yaml:"source"`
	ID     string   `yaml:"id,omitempty"`
	Tags   []string `yaml:"tags,omitempty"`
	Status string   `yaml:"status"`
}

type containerInfo struct {
	Name   string            `yaml:"name"`
	ID     string            `yaml:"id,omitempty"`
	Status string            `yaml:"status"`
	Ports  map[string]string `yaml:"ports,omitempty"`
}

type gitInfo struct {
	Branch string `yaml:"branch"`
	Dirty  bool   `yaml:"dirty"`
}

func collectInfo(cmd *cobra.Command, p Project) (*projectInfo, error) {
	ctx := cmd.Context()
	log := logger.WithContext(ctx)

	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	store, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}

	info := &projectInfo{
		Project: cfg.Project.Name,
		Dir:     cfg.Dir(),
		Config:  cfg.Path(),
		Image:   imageInfo{Source: string(cfg.Image.Source), Status: "none"},
	}

	// The engine is optional here; without it only the record is shown
	var status *container.Status
	mgr, err := p.Containers(ctx)
	engineUp := err == nil
	if engineUp {
		if status, err = mgr.Status(ctx); err != nil {
			return nil, err
		}
	} else {
		log.WithError(err).Warn("Container engine unavailable, showing recorded state only")
		rec, err := store.Load(ctx)
		if err != nil {
			return nil, err
		}
		status = &container.Status{Record: rec}
	}
	fillEngineInfo(info, cfg, status, engineUp)

	if gm, err := p.Git(); err == nil && gm.IsRepository() {
		branch, err := gm.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		dirty, err := gm.HasUncommittedChanges(ctx)
		if err != nil {
			return nil, err
		}
		info.Git = &gitInfo{Branch: branch, Dirty: dirty}
	}

	events, err := store.Events(ctx, constants.DefaultEventHistory)
	if err != nil {
		return nil, err
	}
	info.Events = events

	return info, nil
}

func fillEngineInfo(info *projectInfo, cfg *config.ProjectConfig, status *container.Status, engineUp bool) {
	rec := status.Record

	// Without the engine nothing can be said about what still exists
	missing := "missing"
	if !engineUp {
		missing = "unknown"
	}

	if rec.HasImage() {
		info.Image.ID = types.ShortID(rec.ImageID)
		info.Image.Status = missing
		if status.Image != nil {
			info.Image.Tags = status.Image.Tags
			info.Image.Status = "present"
		}
	}

	if rec.HasContainer() {
		info.Container = &containerInfo{
			Name:   cfg.Container.Name,
			ID:     types.ShortID(rec.ContainerID),
			Status: missing,
		}
		if c := status.Container; c != nil {
			info.Container.Status = c.Status
			info.Container.Ports = c.Ports
		}
	}
}
