package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"simplej/internal/constants"
	"simplej/internal/errors"
	"simplej/internal/validation"
)

// SourceKind names where a project's image comes from
type SourceKind string

const (
	SourceDockerfile SourceKind = "dockerfile"
	SourceDockerHub  SourceKind = "dockerhub"
	SourceURL        SourceKind = "url"
	SourceGit        SourceKind = "git"
	SourceLocalImage SourceKind = "local_image"
)

// configFileNames are tried in order when locating the project config
var configFileNames = []string{constants.ConfigFileName, "simplej.yaml", "simplej.yml"}

var nameSanitizer = regexp.MustCompile(`[^a-z0-9._-]+`)

// ProjectSection configures the project itself
type ProjectSection struct {
	Name      string `toml:"name" yaml:"name"`
	MountPath string `toml:"mount_path" yaml:"mount_path"` // Container path the project dir is bound to
}

// ImageSection declares the image source
type ImageSection struct {
	Source     SourceKind `toml:"source" yaml:"source"`
	Name       string     `toml:"name" yaml:"name"`             // dockerhub: repository name
	Tag        string     `toml:"tag" yaml:"tag"`               // dockerhub: tag
	Context    string     `toml:"context" yaml:"context"`       // dockerfile/url: build context relative to the project
	Dockerfile string     `toml:"dockerfile" yaml:"dockerfile"` // dockerfile/url/git: file name to build
	URL        string     `toml:"url" yaml:"url"`               // url: remote Dockerfile
	GitURL     string     `toml:"git_url" yaml:"git_url"`       // git: repository holding the Dockerfile
	ImageID    string     `toml:"image_id" yaml:"image_id"`     // local_image: existing image
}

// ContainerSection configures the project container
type ContainerSection struct {
	Name         string `toml:"name" yaml:"name"`
	NotebookPort int    `toml:"notebook_port" yaml:"notebook_port"`
	ServicePort  int    `toml:"service_port" yaml:"service_port"`
	StopTimeout  string `toml:"stop_timeout" yaml:"stop_timeout"`
}

// GitSection configures the git workflow
type GitSection struct {
	RemoteURL   string `toml:"remote_url" yaml:"remote_url"`
	AuthorName  string `toml:"author_name" yaml:"author_name"`
	AuthorEmail string `toml:"author_email" yaml:"author_email"`
}

// ProjectConfig is the typed project configuration. It is loaded once per
// invocation and handed to every component that needs it.
type ProjectConfig struct {
	Project   ProjectSection   `toml:"project" yaml:"project"`
	Image     ImageSection     `toml:"image" yaml:"image"`
	Container ContainerSection `toml:"container" yaml:"container"`
	Git       GitSection       `toml:"git" yaml:"git"`

	dir    string
	path   string
	loaded bool
}

// SourceConfig is the resolved image source. Kind selects which of the
// remaining fields are meaningful.
type SourceConfig struct {
	Kind SourceKind

	// dockerhub
	ImageName string
	ImageTag  string

	// dockerfile, url and git
	Dockerfile string
	Context    string // absolute build context

	// url
	URL string

	// git
	GitURL    string
	CloneDest string // absolute clone destination

	// local_image
	ImageID string
}

// Default returns the built-in configuration for a project rooted at dir
func Default(dir string) *ProjectConfig {
	return &ProjectConfig{
		Project: ProjectSection{
			MountPath: constants.DefaultMountPath,
		},
		Image: ImageSection{
			Source:     SourceDockerfile,
			Tag:        constants.DefaultImageTag,
			Context:    constants.DefaultBuildContext,
			Dockerfile: constants.DefaultDockerfile,
		},
		Container: ContainerSection{
			NotebookPort: constants.DefaultNotebookPort,
			ServicePort:  constants.DefaultServicePort,
			StopTimeout:  constants.DefaultStopTimeout.String(),
		},
		dir: dir,
	}
}

// Load reads user-level defaults and then the project file in dir. A missing
// project file is not an error: the defaults are returned and Loaded reports false.
func Load(dir string) (*ProjectConfig, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	cfg := Default(absDir)

	if err := applyGlobal(cfg); err != nil {
		return nil, err
	}

	path, err := FindConfigFile(absDir)
	if err == nil {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.path = path
		cfg.loaded = true
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile returns the first project config file present in dir
func FindConfigFile(dir string) (string, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.ConfigNotFound(filepath.Join(dir, constants.ConfigFileName))
}

// decodeFile unmarshals path over cfg so keys absent from the file keep their current values
func decodeFile(path string, cfg *ProjectConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigParseError(path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.ConfigParseError(path, err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return errors.ConfigParseError(path, err)
		}
	}
	return nil
}

// applyDefaults fills derived values that depend on the project directory
func (c *ProjectConfig) applyDefaults() {
	if c.Project.Name == "" {
		c.Project.Name = filepath.Base(c.dir)
	}
	c.Project.Name = SanitizeName(c.Project.Name)

	c.Image.Source = SourceKind(strings.ToLower(string(c.Image.Source)))
	if c.Image.Source == "" {
		c.Image.Source = SourceDockerfile
	}
	if c.Image.Tag == "" {
		c.Image.Tag = constants.DefaultImageTag
	}
	if c.Image.Dockerfile == "" {
		c.Image.Dockerfile = constants.DefaultDockerfile
	}
	if c.Image.Context == "" {
		c.Image.Context = constants.DefaultBuildContext
	}
	if c.Container.Name == "" {
		c.Container.Name = constants.ContainerNamePrefix + c.Project.Name
	}
	if c.Container.StopTimeout == "" {
		c.Container.StopTimeout = constants.DefaultStopTimeout.String()
	}
}

// SanitizeName lowercases name and replaces characters that are not valid in
// image and container names.
func SanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = nameSanitizer.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-._")
	if name == "" {
		return "project"
	}
	return name
}

// Validate checks the fields every command relies on. Source specific fields
// are checked by Source so that git-only commands work with a partial file.
func (c *ProjectConfig) Validate() error {
	if err := validation.ContainerPath(c.Project.MountPath); err != nil {
		return errors.ConfigValidationError("project.mount_path", err.Error())
	}
	if err := validation.ContainerName(c.Container.Name); err != nil {
		return errors.ConfigValidationError("container.name", err.Error())
	}
	if err := validation.PortNumber(c.Container.NotebookPort); err != nil {
		return errors.ConfigValidationError("container.notebook_port", err.Error())
	}
	if err := validation.PortNumber(c.Container.ServicePort); err != nil {
		return errors.ConfigValidationError("container.service_port", err.Error())
	}
	if c.Container.NotebookPort == c.Container.ServicePort {
		return errors.ConfigValidationError("container.service_port", "must differ from notebook_port")
	}
	if _, err := c.StopTimeout(); err != nil {
		return errors.ConfigValidationError("container.stop_timeout", err.Error())
	}
	switch c.Image.Source {
	case SourceDockerfile, SourceDockerHub, SourceURL, SourceGit, SourceLocalImage:
	default:
		return errors.ConfigValidationError("image.source",
			fmt.Sprintf("unknown source %q (choices: dockerfile, dockerhub, url, git, local_image)", c.Image.Source))
	}
	return nil
}

// Source resolves the configured image source into a SourceConfig
func (c *ProjectConfig) Source() (SourceConfig, error) {
	src := SourceConfig{Kind: c.Image.Source}

	switch c.Image.Source {
	case SourceDockerHub:
		if err := validation.ImageName(c.Image.Name); err != nil {
			return src, errors.ConfigValidationError("image.name", err.Error())
		}
		if err := validation.ImageTag(c.Image.Tag); err != nil {
			return src, errors.ConfigValidationError("image.tag", err.Error())
		}
		src.ImageName = c.Image.Name
		src.ImageTag = c.Image.Tag

	case SourceLocalImage:
		if err := validation.NonEmptyString("image.image_id", c.Image.ImageID); err != nil {
			return src, errors.ConfigValidationError("image.image_id", err.Error())
		}
		src.ImageID = c.Image.ImageID

	case SourceDockerfile, SourceURL, SourceGit:
		if err := validation.FileName(c.Image.Dockerfile); err != nil {
			return src, errors.ConfigValidationError("image.dockerfile", err.Error())
		}
		src.Dockerfile = c.Image.Dockerfile

		contextDir, err := validation.RelativePath(c.Image.Context)
		if err != nil {
			return src, errors.ConfigValidationError("image.context", err.Error())
		}
		src.Context = filepath.Join(c.dir, contextDir)

		if c.Image.Source == SourceURL {
			if err := validation.NonEmptyString("image.url", c.Image.URL); err != nil {
				return src, errors.ConfigValidationError("image.url", err.Error())
			}
			src.URL = c.Image.URL
		}
		if c.Image.Source == SourceGit {
			if err := validation.NonEmptyString("image.git_url", c.Image.GitURL); err != nil {
				return src, errors.ConfigValidationError("image.git_url", err.Error())
			}
			src.GitURL = c.Image.GitURL
			src.CloneDest = c.SourceDir()
		}

	default:
		return src, errors.ConfigValidationError("image.source", fmt.Sprintf("unknown source %q", c.Image.Source))
	}

	return src, nil
}

// StopTimeout parses the configured stop timeout
func (c *ProjectConfig) StopTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Container.StopTimeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// Dir returns the absolute project directory
func (c *ProjectConfig) Dir() string {
	return c.dir
}

// Path returns the config file that was loaded, or "" when defaults are in use
func (c *ProjectConfig) Path() string {
	return c.path
}

// Loaded reports whether a project config file was found
func (c *ProjectConfig) Loaded() bool {
	return c.loaded
}

// StateDir returns the directory simplej owns inside the project
func (c *ProjectConfig) StateDir() string {
	return filepath.Join(c.dir, constants.StateDirName)
}

// SourceDir returns where git image sources are cloned
func (c *ProjectConfig) SourceDir() string {
	return filepath.Join(c.StateDir(), constants.SourceDirName)
}

// BuildTag returns the tag applied to images built for this project
func (c *ProjectConfig) BuildTag() string {
	return constants.ImageRepositoryPrefix + c.Project.Name + ":" + constants.DefaultImageTag
}
