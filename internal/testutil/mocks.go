package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"simplej/internal/container"
	"simplej/internal/types"
)

// FakeEngine is an in-memory container.Engine for tests
type FakeEngine struct {
	mu         sync.RWMutex
	images     map[string]*types.Image
	refs       map[string]string // name:tag -> image id
	containers map[string]*types.Container
	calls      map[string][]interface{}
	errors     map[string]error
	nextID     int

	// Registry lists the name:tag references Pull can fetch. Nil allows any.
	Registry map[string]bool

	// StopFn is called by Stop when set
	StopFn func(ctx context.Context, id string, timeout time.Duration) error
	// ExecFn is called by Exec when set
	ExecFn func(ctx context.Context, id string, cmd []string) ([]byte, error)
	// BuildFn is called by Build when set
	BuildFn func(ctx context.Context, opts container.BuildOptions) (*types.Image, error)
}

// NewFakeEngine creates an empty fake engine
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		images:     make(map[string]*types.Image),
		refs:       make(map[string]string),
		containers: make(map[string]*types.Container),
		calls:      make(map[string][]interface{}),
		errors:     make(map[string]error),
		nextID:     1,
	}
}

// SetError makes method fail with err until cleared with a nil error
func (f *FakeEngine) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errors, method)
		return
	}
	f.errors[method] = err
}

// GetCalls returns the arguments of every call made to method
func (f *FakeEngine) GetCalls(method string) []interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

// CallCount returns how often method was called
func (f *FakeEngine) CallCount(method string) int {
	return len(f.GetCalls(method))
}

func (f *FakeEngine) recordCall(method string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method] = append(f.calls[method], args)
}

func (f *FakeEngine) checkError(method string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.errors[method]
}

func (f *FakeEngine) newID(prefix string) string {
	id := fmt.Sprintf("%s%064x", prefix, f.nextID)
	f.nextID++
	return id
}

// AddImage registers a local image under ref and returns its id
func (f *FakeEngine) AddImage(ref string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addImageLocked(ref)
}

func (f *FakeEngine) addImageLocked(ref string) string {
	if id, ok := f.refs[ref]; ok {
		return id
	}
	id := f.newID("sha256:")
	f.images[id] = &types.Image{ID: id, Tags: []string{ref}}
	f.refs[ref] = id
	return id
}

// HasImage reports whether the engine still holds the image
func (f *FakeEngine) HasImage(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.images[id]
	return ok
}

// Container returns a copy of the stored container, or nil
func (f *FakeEngine) Container(id string) *types.Container {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.containers[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// SetStatus forces a container into status
func (f *FakeEngine) SetStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok {
		c.Status = status
	}
}

// DeleteContainer removes a container behind simplej's back
func (f *FakeEngine) DeleteContainer(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
}

func notFound(errType container.ErrorType, op, id string) error {
	ce := container.NewContainerError(errType, op, "not found", fmt.Errorf("no such object: %s", id))
	ce.ContainerID = id
	return ce
}

// Ping implements container.Engine
func (f *FakeEngine) Ping(ctx context.Context) error {
	f.recordCall("Ping")
	return f.checkError("Ping")
}

// Pull implements container.Engine
func (f *FakeEngine) Pull(ctx context.Context, name, tag string) (*types.Image, error) {
	ref := name + ":" + tag
	f.recordCall("Pull", ref)
	if err := f.checkError("Pull"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Registry != nil && !f.Registry[ref] {
		return nil, notFound(container.ErrorTypeImageNotFound, "pull", ref)
	}
	id := f.addImageLocked(ref)
	img := *f.images[id]
	return &img, nil
}

// Build implements container.Engine. The Dockerfile must exist in the context.
func (f *FakeEngine) Build(ctx context.Context, opts container.BuildOptions) (*types.Image, error) {
	f.recordCall("Build", opts)
	if f.BuildFn != nil {
		return f.BuildFn(ctx, opts)
	}
	if err := f.checkError("Build"); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(opts.ContextDir, opts.Dockerfile)); err != nil {
		return nil, container.NewContainerError(container.ErrorTypeBuildError, "build", "image build failed", err)
	}
	if opts.Output != nil {
		opts.Output("Step 1/1 : FROM scratch")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// A rebuild produces a new image id for the same tag
	delete(f.refs, opts.Tag)
	id := f.addImageLocked(opts.Tag)
	img := *f.images[id]
	return &img, nil
}

// GetImage implements container.Engine
func (f *FakeEngine) GetImage(ctx context.Context, ref string) (*types.Image, error) {
	f.recordCall("GetImage", ref)
	if err := f.checkError("GetImage"); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if id, ok := f.refs[ref]; ok {
		ref = id
	}
	img, ok := f.images[ref]
	if !ok {
		return nil, notFound(container.ErrorTypeImageNotFound, "inspect image", ref)
	}
	cp := *img
	return &cp, nil
}

// RemoveImage implements container.Engine
func (f *FakeEngine) RemoveImage(ctx context.Context, id string) error {
	f.recordCall("RemoveImage", id)
	if err := f.checkError("RemoveImage"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.images[id]; !ok {
		return notFound(container.ErrorTypeImageNotFound, "remove image", id)
	}
	delete(f.images, id)
	for ref, imgID := range f.refs {
		if imgID == id {
			delete(f.refs, ref)
		}
	}
	return nil
}

// Run implements container.Engine. A container that fails to start is
// removed again, as DockerEngine does.
func (f *FakeEngine) Run(ctx context.Context, cfg *container.RunConfig) (*types.Container, error) {
	f.recordCall("Run", cfg)
	if err := f.checkError("Run"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.images[cfg.Image]; !ok {
		return nil, notFound(container.ErrorTypeImageNotFound, "create", cfg.Image)
	}
	for _, c := range f.containers {
		if c.Name == cfg.Name {
			return nil, container.NewContainerError(container.ErrorTypeConflict, "create",
				"create conflicts with an existing resource", fmt.Errorf("name %q is already in use", cfg.Name))
		}
	}

	c := &types.Container{
		ID:     f.newID(""),
		Name:   cfg.Name,
		Image:  cfg.Image,
		Status: "running",
		Ports:  map[string]string{},
		Mounts: map[string]string{},
	}
	for _, p := range cfg.Ports {
		c.Ports[fmt.Sprintf("%d/tcp", p)] = fmt.Sprintf("0.0.0.0:%d", p)
	}
	for _, m := range cfg.Mounts {
		c.Mounts[m.HostPath] = m.ContainerPath
	}
	f.containers[c.ID] = c

	// A start error set with SetError("Start") fails the start after the
	// create, and the created container is removed again
	if err := f.errors["Start"]; err != nil {
		delete(f.containers, c.ID)
		f.calls["Remove"] = append(f.calls["Remove"], []interface{}{c.ID})
		return nil, err
	}
	cp := *c
	return &cp, nil
}

// GetContainer implements container.Engine
func (f *FakeEngine) GetContainer(ctx context.Context, id string) (*types.Container, error) {
	f.recordCall("GetContainer", id)
	if err := f.checkError("GetContainer"); err != nil {
		return nil, err
	}
	if c := f.Container(id); c != nil {
		return c, nil
	}
	return nil, notFound(container.ErrorTypeContainerNotFound, "inspect", id)
}

// Start implements container.Engine
func (f *FakeEngine) Start(ctx context.Context, id string) error {
	f.recordCall("Start", id)
	if err := f.checkError("Start"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return notFound(container.ErrorTypeContainerNotFound, "start", id)
	}
	c.Status = "running"
	return nil
}

// Stop implements container.Engine
func (f *FakeEngine) Stop(ctx context.Context, id string, timeout time.Duration) error {
	f.recordCall("Stop", id, timeout)
	if f.StopFn != nil {
		return f.StopFn(ctx, id, timeout)
	}
	if err := f.checkError("Stop"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return notFound(container.ErrorTypeContainerNotFound, "stop", id)
	}
	c.Status = "exited"
	return nil
}

// Remove implements container.Engine. Running containers cannot be removed.
func (f *FakeEngine) Remove(ctx context.Context, id string) error {
	f.recordCall("Remove", id)
	if err := f.checkError("Remove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return notFound(container.ErrorTypeContainerNotFound, "remove", id)
	}
	if c.Status == "running" {
		return container.NewContainerError(container.ErrorTypeConflict, "remove",
			"remove conflicts with an existing resource", fmt.Errorf("container %s is running", id))
	}
	delete(f.containers, id)
	return nil
}

// Exec implements container.Engine
func (f *FakeEngine) Exec(ctx context.Context, id string, cmd []string) ([]byte, error) {
	f.recordCall("Exec", id, cmd)
	if f.ExecFn != nil {
		return f.ExecFn(ctx, id, cmd)
	}
	if err := f.checkError("Exec"); err != nil {
		return nil, err
	}
	return nil, nil
}

// Close implements container.Engine
func (f *FakeEngine) Close() error {
	f.recordCall("Close")
	return nil
}

var _ container.Engine = (*FakeEngine)(nil)
