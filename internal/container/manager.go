package container

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"simplej/internal/config"
	"simplej/internal/errors"
	"simplej/internal/logger"
	"simplej/internal/state"
	"simplej/internal/types"
)

// RecordStore is the part of the state store the lifecycle needs
type RecordStore interface {
	Load(ctx context.Context) (state.Record, error)
	Update(ctx context.Context, fn func(*state.Record) error) error
	AppendEvent(ctx context.Context, operation, detail string) error
}

// ImagePreparer provisions the project image and records its id
type ImagePreparer interface {
	PrepareImage(ctx context.Context, src config.SourceConfig) (*types.Image, error)
}

// Manager drives the project container through its lifecycle
type Manager struct {
	engine Engine
	store  RecordStore
	cfg    *config.ProjectConfig
}

// New creates a new container manager
func New(cfg *config.ProjectConfig, engine Engine, store RecordStore) *Manager {
	return &Manager{
		engine: engine,
		store:  store,
		cfg:    cfg,
	}
}

// Status is the combined view of the record and the live engine state
type Status struct {
	Record    state.Record
	Container *types.Container // nil when nothing is recorded or it is gone
	Image     *types.Image     // nil when nothing is recorded or it is gone
}

// GetContainer fetches the live container. A container the engine does not
// know is reported and returned as CONTAINER_NOT_FOUND.
func (m *Manager) GetContainer(ctx context.Context, id string) (*types.Container, error) {
	c, err := m.engine.GetContainer(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			logger.WithContext(ctx).WithField("container_id", id).Warn("Container recorded for this project no longer exists")
			return nil, errors.ContainerNotFound(id).WithCause(err)
		}
		return nil, HandleError(ctx, err, "inspect")
	}
	return c, nil
}

// Run starts the project container. A recorded container is started again
// when stopped; otherwise a new one is created from the recorded image.
func (m *Manager) Run(ctx context.Context) (*types.Container, error) {
	log := logger.WithContext(ctx)
	var result *types.Container
	created := false

	err := m.store.Update(ctx, func(rec *state.Record) error {
		if rec.HasContainer() {
			existing, err := m.GetContainer(ctx, rec.ContainerID)
			if err != nil {
				return err
			}
			if existing.Running() {
				log.WithField("container_id", existing.ShortID()).Info("Container is already running")
				result = existing
				return nil
			}

			log.WithField("container_id", existing.ShortID()).Info("Starting existing container")
			if err := m.engine.Start(ctx, existing.ID); err != nil {
				return HandleError(ctx, err, "start")
			}
			refreshed, err := m.GetContainer(ctx, existing.ID)
			if err != nil {
				return err
			}
			result = refreshed
			return nil
		}

		if !rec.HasImage() {
			return errors.ErrNoImageRecorded
		}

		runCfg := m.runConfig(rec.ImageID)
		log.WithFields(logger.Fields{
			"image": types.ShortID(rec.ImageID),
			"name":  runCfg.Name,
			"ports": runCfg.Ports,
		}).Info("Creating container")

		c, err := m.engine.Run(ctx, runCfg)
		if err != nil {
			return HandleError(ctx, err, "run")
		}
		rec.ContainerID = c.ID
		result = c
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		m.recordEvent(ctx, "run-container", result.ID)
	}
	return result, nil
}

func (m *Manager) runConfig(imageID string) *RunConfig {
	return &RunConfig{
		Name:  m.cfg.Container.Name,
		Image: imageID,
		Mounts: []Mount{{
			HostPath:      m.cfg.Dir(),
			ContainerPath: m.cfg.Project.MountPath,
		}},
		Ports: []int{m.cfg.Container.NotebookPort, m.cfg.Container.ServicePort},
		Labels: map[string]string{
			"simplej.project": m.cfg.Project.Name,
			"simplej.dir":     m.cfg.Dir(),
		},
	}
}

// Stop stops the recorded container and returns its status afterwards. The
// record is never modified. When the engine times out the live status is
// re-queried and reported instead of failing.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	log := logger.WithContext(ctx)

	rec, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if !rec.HasContainer() {
		return "", errors.ErrNoContainerRecorded
	}

	c, err := m.GetContainer(ctx, rec.ContainerID)
	if err != nil {
		return "", err
	}
	if !c.Running() {
		log.WithFields(logger.Fields{"container_id": c.ShortID(), "status": c.Status}).Info("Container is not running")
		return c.Status, errors.ContainerNotRunning(c.ShortID(), c.Status)
	}

	timeout, err := m.cfg.StopTimeout()
	if err != nil {
		return "", errors.ConfigValidationError("container.stop_timeout", err.Error())
	}

	log.WithFields(logger.Fields{"container_id": c.ShortID(), "timeout": timeout}).Info("Stopping container")
	if err := m.engine.Stop(ctx, c.ID, timeout); err != nil {
		if !IsTimeout(err) {
			return "", HandleError(ctx, err, "stop")
		}

		LogContainerWarning(ctx, err, "stop")
		live, qerr := m.GetContainer(ctx, c.ID)
		if qerr != nil {
			return "", qerr
		}
		log.WithField("status", live.Status).Warn("Stop timed out, reporting live container status")
		return live.Status, nil
	}

	stopped, err := m.GetContainer(ctx, c.ID)
	if err != nil {
		return "", err
	}
	m.recordEvent(ctx, "stop-container", c.ID)
	return stopped.Status, nil
}

// Remove deletes the recorded container and clears it from the record. A
// container the engine no longer knows is only cleared.
func (m *Manager) Remove(ctx context.Context) (string, error) {
	var removed string
	err := m.store.Update(ctx, func(rec *state.Record) error {
		if !rec.HasContainer() {
			return errors.ErrNoContainerRecorded
		}
		if err := m.engine.Remove(ctx, rec.ContainerID); err != nil {
			if !IsNotFound(err) {
				return HandleError(ctx, err, "remove")
			}
			logger.WithContext(ctx).WithField("container_id", types.ShortID(rec.ContainerID)).
				Warn("Container was already removed, clearing the record")
		}
		removed = rec.ContainerID
		rec.ContainerID = ""
		return nil
	})
	if err != nil {
		return "", err
	}
	m.recordEvent(ctx, "remove-container", removed)
	return removed, nil
}

// RemoveImage deletes the recorded image and clears it from the record. An
// image the engine no longer knows is only cleared.
func (m *Manager) RemoveImage(ctx context.Context) (string, error) {
	var removed string
	err := m.store.Update(ctx, func(rec *state.Record) error {
		if !rec.HasImage() {
			return errors.ErrNoImageRecorded
		}
		if err := m.engine.RemoveImage(ctx, rec.ImageID); err != nil {
			if !IsNotFound(err) {
				return HandleError(ctx, err, "remove image")
			}
			logger.WithContext(ctx).WithField("image_id", types.ShortID(rec.ImageID)).
				Warn("Image was already removed, clearing the record")
		}
		removed = rec.ImageID
		rec.ImageID = ""
		return nil
	})
	if err != nil {
		return "", err
	}
	m.recordEvent(ctx, "remove-image", removed)
	return removed, nil
}

// AllUp prepares the image and runs the container. A prepare failure stops
// the sequence before any container is created.
func (m *Manager) AllUp(ctx context.Context, preparer ImagePreparer, src config.SourceConfig) (*types.Container, error) {
	if _, err := preparer.PrepareImage(ctx, src); err != nil {
		return nil, err
	}
	return m.Run(ctx)
}

// Destroy stops the container, removes it and removes the image. Every step
// runs even when an earlier one fails. Steps that find nothing to act on are
// reported and do not count as failures.
func (m *Manager) Destroy(ctx context.Context) error {
	log := logger.WithContext(ctx)

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"stop-container", func(ctx context.Context) error { _, err := m.Stop(ctx); return err }},
		{"remove-container", func(ctx context.Context) error { _, err := m.Remove(ctx); return err }},
		{"remove-image", func(ctx context.Context) error { _, err := m.RemoveImage(ctx); return err }},
	}

	var errs []error
	for _, step := range steps {
		err := step.run(ctx)
		switch {
		case err == nil:
			log.WithField("step", step.name).Debug("Destroy step completed")
		case nothingToDo(err):
			log.WithField("step", step.name).Info(err.Error())
		default:
			log.WithField("step", step.name).WithError(err).Warn("Destroy step failed, continuing")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return stderrors.Join(errs...)
}

func nothingToDo(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrNoImage, errors.ErrNoContainer, errors.ErrContainerNotRunning:
		return true
	}
	return false
}

// Token asks the notebook server inside the running container for its
// access token.
func (m *Manager) Token(ctx context.Context) ([]NotebookServer, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !rec.HasContainer() {
		return nil, errors.ErrNoContainerRecorded
	}

	c, err := m.GetContainer(ctx, rec.ContainerID)
	if err != nil {
		return nil, err
	}
	if !c.Running() {
		return nil, errors.ContainerNotRunning(c.ShortID(), c.Status)
	}

	var lastErr error
	for _, cmd := range tokenCommands {
		out, err := m.engine.Exec(ctx, c.ID, cmd)
		if err != nil {
			logger.WithContext(ctx).WithError(err).WithField("cmd", strings.Join(cmd, " ")).Debug("Token lookup command failed")
			lastErr = err
			continue
		}
		if servers := ParseServerList(out); len(servers) > 0 {
			return servers, nil
		}
	}

	tokenErr := errors.TokenNotFound(c.ShortID())
	if lastErr != nil {
		tokenErr = tokenErr.WithCause(lastErr)
	}
	return nil, tokenErr
}

// Status returns the record together with what the engine reports for it.
// Lookups that fail leave the corresponding field nil.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{Record: rec}
	if rec.HasContainer() {
		if c, err := m.engine.GetContainer(ctx, rec.ContainerID); err == nil {
			st.Container = c
		} else {
			LogContainerWarning(ctx, err, "inspect")
		}
	}
	if rec.HasImage() {
		if img, err := m.engine.GetImage(ctx, rec.ImageID); err == nil {
			st.Image = img
		} else {
			LogContainerWarning(ctx, err, "inspect image")
		}
	}
	return st, nil
}

func (m *Manager) recordEvent(ctx context.Context, operation, detail string) {
	if err := m.store.AppendEvent(ctx, operation, detail); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Failed to record event")
	}
}

// HandleError logs an engine failure and maps it onto the simplej error
// taxonomy, keeping the ContainerError in the chain for hints.
func HandleError(ctx context.Context, err error, operation string) error {
	LogContainerError(ctx, err, operation)

	var ce *ContainerError
	if !stderrors.As(err, &ce) {
		return errors.Unexpected(operation, err)
	}

	message := ce.Message
	switch ce.Type {
	case ErrorTypeContainerNotFound:
		return errors.Wrap(errors.ErrContainerNotFound, message, ce)
	case ErrorTypeImageNotFound:
		return errors.Wrap(errors.ErrImageNotFound, message, ce)
	case ErrorTypeTimeout:
		return errors.EngineTimeout(operation, ce)
	case ErrorTypeRuntimeNotFound:
		return errors.EngineUnavailable(ce)
	default:
		return errors.Wrap(errors.ErrUnexpected, message, ce)
	}
}
