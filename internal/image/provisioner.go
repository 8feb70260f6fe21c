// Package image turns a configured image source into an image present in the
// local engine and records its id in the project state.
package image

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"simplej/internal/config"
	"simplej/internal/constants"
	"simplej/internal/container"
	"simplej/internal/errors"
	"simplej/internal/git"
	"simplej/internal/logger"
	"simplej/internal/state"
	"simplej/internal/types"
)

// Engine is the part of the container engine provisioning needs
type Engine interface {
	Pull(ctx context.Context, name, tag string) (*types.Image, error)
	Build(ctx context.Context, opts container.BuildOptions) (*types.Image, error)
	GetImage(ctx context.Context, ref string) (*types.Image, error)
}

// RecordStore is the part of the state store provisioning writes to
type RecordStore interface {
	Update(ctx context.Context, fn func(*state.Record) error) error
	AppendEvent(ctx context.Context, operation, detail string) error
}

// CloneFunc makes a shallow clone of url into dest
type CloneFunc func(ctx context.Context, url, dest string) error

// Provisioner prepares the project image
type Provisioner struct {
	engine     Engine
	store      RecordStore
	cfg        *config.ProjectConfig
	httpClient *http.Client
	clone      CloneFunc
}

// Option configures a Provisioner
type Option func(*Provisioner)

// WithHTTPClient replaces the client used to download Dockerfiles
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provisioner) {
		p.httpClient = c
	}
}

// WithCloner replaces the function used to fetch git sources
func WithCloner(fn CloneFunc) Option {
	return func(p *Provisioner) {
		p.clone = fn
	}
}

// New creates a provisioner for the project
func New(cfg *config.ProjectConfig, engine Engine, store RecordStore, opts ...Option) *Provisioner {
	p := &Provisioner{
		engine: engine,
		store:  store,
		cfg:    cfg,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPClientTimeout,
		},
		clone: git.ShallowClone,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrepareImage resolves src into a local image and records its id. Nothing
// is recorded when any step fails.
func (p *Provisioner) PrepareImage(ctx context.Context, src config.SourceConfig) (*types.Image, error) {
	log := logger.WithContext(ctx).WithField("source", src.Kind)
	start := time.Now()

	img, err := p.resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	err = p.store.Update(ctx, func(rec *state.Record) error {
		rec.ImageID = img.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := p.store.AppendEvent(ctx, "prepare-image", fmt.Sprintf("%s %s", src.Kind, img.ID)); err != nil {
		log.WithError(err).Warn("Failed to record event")
	}

	log.WithFields(logger.Fields{
		"image_id": img.ShortID(),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Image ready")
	return img, nil
}

func (p *Provisioner) resolve(ctx context.Context, src config.SourceConfig) (*types.Image, error) {
	switch src.Kind {
	case config.SourceDockerHub:
		return p.pull(ctx, src)
	case config.SourceLocalImage:
		return p.lookup(ctx, src)
	case config.SourceURL:
		if err := p.download(ctx, src); err != nil {
			return nil, err
		}
		return p.build(ctx, src)
	case config.SourceGit:
		contextDir, err := p.fetchGit(ctx, src)
		if err != nil {
			return nil, err
		}
		src.Context = contextDir
		return p.build(ctx, src)
	case config.SourceDockerfile:
		return p.build(ctx, src)
	default:
		return nil, errors.ConfigValidationError("image.source", fmt.Sprintf("unknown source %q", src.Kind))
	}
}

func (p *Provisioner) pull(ctx context.Context, src config.SourceConfig) (*types.Image, error) {
	tag := src.ImageTag
	if tag == "" {
		tag = constants.DefaultImageTag
	}

	logger.WithContext(ctx).WithFields(logger.Fields{
		"image": src.ImageName,
		"tag":   tag,
	}).Info("Pulling image")

	img, err := p.engine.Pull(ctx, src.ImageName, tag)
	if err != nil {
		if container.IsNotFound(err) {
			return nil, errors.ImageNotFound(src.ImageName + ":" + tag).WithCause(err)
		}
		return nil, container.HandleError(ctx, err, "pull")
	}
	return img, nil
}

func (p *Provisioner) lookup(ctx context.Context, src config.SourceConfig) (*types.Image, error) {
	img, err := p.engine.GetImage(ctx, src.ImageID)
	if err != nil {
		if container.IsNotFound(err) {
			return nil, errors.ImageNotFound(src.ImageID).WithCause(err)
		}
		return nil, container.HandleError(ctx, err, "inspect image")
	}
	logger.WithContext(ctx).WithField("image_id", img.ShortID()).Info("Using local image")
	return img, nil
}

// download fetches the Dockerfile at src.URL into the build context
func (p *Provisioner) download(ctx context.Context, src config.SourceConfig) error {
	log := logger.WithContext(ctx).WithField("url", src.URL)
	log.Info("Downloading Dockerfile")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return errors.DownloadFailed(src.URL, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.DownloadFailed(src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.DownloadFailed(src.URL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	if err := os.MkdirAll(src.Context, constants.DirPermissions); err != nil {
		return errors.Unexpected("create build context", err)
	}

	tmp, err := os.CreateTemp(src.Context, "."+src.Dockerfile+".*")
	if err != nil {
		return errors.Unexpected("write dockerfile", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.DownloadFailed(src.URL, err)
	}

	dest := filepath.Join(src.Context, src.Dockerfile)
	if err := os.Chmod(tmp.Name(), constants.FilePermissions); err != nil {
		return errors.Unexpected("write dockerfile", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return errors.Unexpected("write dockerfile", err)
	}

	log.WithFields(logger.Fields{"path": dest, "bytes": n}).Debug("Dockerfile downloaded")
	return nil
}

// fetchGit clones src.GitURL afresh and returns the directory of the first
// file named src.Dockerfile in walk order
func (p *Provisioner) fetchGit(ctx context.Context, src config.SourceConfig) (string, error) {
	log := logger.WithContext(ctx).WithField("url", src.GitURL)

	if err := os.RemoveAll(src.CloneDest); err != nil {
		return "", errors.Unexpected("clean clone directory", err)
	}
	if err := p.clone(ctx, src.GitURL, src.CloneDest); err != nil {
		return "", err
	}
	if err := os.RemoveAll(filepath.Join(src.CloneDest, ".git")); err != nil {
		return "", errors.Unexpected("strip repository metadata", err)
	}

	contextDir, err := findDockerfile(src.CloneDest, src.Dockerfile)
	if err != nil {
		return "", err
	}
	log.WithField("context", contextDir).Info("Found Dockerfile in cloned source")
	return contextDir, nil
}

func findDockerfile(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = filepath.Dir(path)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", errors.Unexpected("search cloned source", err)
	}
	if found == "" {
		return "", errors.DockerfileNotFound(name, root)
	}
	return found, nil
}

func (p *Provisioner) build(ctx context.Context, src config.SourceConfig) (*types.Image, error) {
	log := logger.WithContext(ctx)

	dockerfile := filepath.Join(src.Context, src.Dockerfile)
	if info, err := os.Stat(dockerfile); err != nil || info.IsDir() {
		return nil, errors.DockerfileNotFound(src.Dockerfile, src.Context)
	}

	tag := p.cfg.BuildTag()
	log.WithFields(logger.Fields{
		"context": src.Context,
		"tag":     tag,
	}).Info("Building image")

	img, err := p.engine.Build(ctx, container.BuildOptions{
		ContextDir: src.Context,
		Dockerfile: src.Dockerfile,
		Tag:        tag,
		Output: func(line string) {
			log.Debug(line)
		},
	})
	if err != nil {
		return nil, container.HandleError(ctx, err, "build")
	}
	return img, nil
}
