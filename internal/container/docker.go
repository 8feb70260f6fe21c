package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"simplej/internal/constants"
	simplejtypes "simplej/internal/types"
)

// DockerEngine implements Engine on the Docker Engine API
type DockerEngine struct {
	inner *client.Client
}

// NewDockerEngine creates a client from the environment (DOCKER_HOST and
// friends). host overrides the daemon address when non-empty.
func NewDockerEngine(host string) (*DockerEngine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewContainerError(ErrorTypeRuntimeNotFound, "connect", "failed to create docker client", err)
	}
	return &DockerEngine{inner: inner}, nil
}

// Ping validates connectivity to the Docker daemon
func (d *DockerEngine) Ping(ctx context.Context) error {
	ping, err := d.inner.Ping(ctx)
	if err != nil {
		return classifyEngineError("ping", "", resourceContainer, err)
	}
	if ping.APIVersion == "" {
		return NewContainerError(ErrorTypeRuntimeNotFound, "ping", "docker ping returned empty API version", nil)
	}
	return nil
}

// Close releases resources held by the Docker client
func (d *DockerEngine) Close() error {
	if d.inner == nil {
		return nil
	}
	return d.inner.Close()
}

// Pull fetches an image from its registry
func (d *DockerEngine) Pull(ctx context.Context, name, tag string) (*simplejtypes.Image, error) {
	ref := name
	if tag != "" {
		ref = name + ":" + tag
	}

	rc, err := d.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return nil, classifyEngineError("pull", ref, resourceImage, err)
	}
	defer rc.Close()

	if err := drainMessages(rc, nil); err != nil {
		ce := NewContainerError(parseDockerError(err.Error(), nil), "pull", "image pull failed", err)
		ce.ContainerID = ref
		return nil, ce
	}

	return d.GetImage(ctx, ref)
}

// Build builds an image from opts.ContextDir and tags it with opts.Tag
func (d *DockerEngine) Build(ctx context.Context, opts BuildOptions) (*simplejtypes.Image, error) {
	if strings.TrimSpace(opts.ContextDir) == "" {
		return nil, NewContainerError(ErrorTypeBuildError, "build", "build directory cannot be empty", nil)
	}
	if strings.TrimSpace(opts.Tag) == "" {
		return nil, NewContainerError(ErrorTypeBuildError, "build", "image tag cannot be empty", nil)
	}

	buildCtx, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{})
	if err != nil {
		return nil, NewContainerError(ErrorTypeBuildError, "build", "failed to create build context", err)
	}
	defer buildCtx.Close()

	resp, err := d.inner.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  opts.Dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, classifyEngineError("build", opts.Tag, resourceImage, err)
	}
	defer resp.Body.Close()

	if err := drainMessages(resp.Body, opts.Output); err != nil {
		return nil, NewContainerError(ErrorTypeBuildError, "build", "image build failed", err)
	}

	return d.GetImage(ctx, opts.Tag)
}

// GetImage inspects a local image
func (d *DockerEngine) GetImage(ctx context.Context, ref string) (*simplejtypes.Image, error) {
	info, _, err := d.inner.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, classifyEngineError("inspect image", ref, resourceImage, err)
	}
	return &simplejtypes.Image{ID: info.ID, Tags: info.RepoTags, Size: info.Size}, nil
}

// RemoveImage deletes a local image
func (d *DockerEngine) RemoveImage(ctx context.Context, id string) error {
	if _, err := d.inner.ImageRemove(ctx, id, image.RemoveOptions{PruneChildren: true}); err != nil {
		return classifyEngineError("remove image", id, resourceImage, err)
	}
	return nil
}

// Run creates and starts a detached container
func (d *DockerEngine) Run(ctx context.Context, cfg *RunConfig) (*simplejtypes.Container, error) {
	if strings.TrimSpace(cfg.Image) == "" {
		return nil, NewContainerError(ErrorTypeUnknown, "run", "image cannot be empty", nil)
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range cfg.Ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(p))
		if err != nil {
			return nil, NewContainerError(ErrorTypeNetworkError, "run", fmt.Sprintf("invalid port %d", p), err)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(p)}}
	}

	binds := make([]string, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		binds = append(binds, m.HostPath+":"+m.ContainerPath)
	}

	containerCfg := &dockercontainer.Config{
		Image:        cfg.Image,
		ExposedPorts: exposed,
		Labels:       cfg.Labels,
	}
	hostCfg := &dockercontainer.HostConfig{
		Binds:        binds,
		PortBindings: bindings,
	}

	created, err := d.inner.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, cfg.Name)
	if err != nil {
		return nil, classifyEngineError("create", cfg.Name, resourceImage, err)
	}

	if err := d.inner.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		startErr := classifyEngineError("start", created.ID, resourceContainer, err)
		// The name stays taken while the created container exists
		cleanupCtx := context.WithoutCancel(ctx)
		if rmErr := d.inner.ContainerRemove(cleanupCtx, created.ID, dockercontainer.RemoveOptions{Force: true, RemoveVolumes: true}); rmErr != nil {
			LogContainerWarning(ctx, classifyEngineError("remove", created.ID, resourceContainer, rmErr), "remove after failed start")
		}
		return nil, startErr
	}

	return d.GetContainer(ctx, created.ID)
}

// GetContainer inspects a container
func (d *DockerEngine) GetContainer(ctx context.Context, id string) (*simplejtypes.Container, error) {
	info, err := d.inner.ContainerInspect(ctx, id)
	if err != nil {
		return nil, classifyEngineError("inspect", id, resourceContainer, err)
	}
	return toContainer(info), nil
}

// Start starts an existing container
func (d *DockerEngine) Start(ctx context.Context, id string) error {
	if err := d.inner.ContainerStart(ctx, id, dockercontainer.StartOptions{}); err != nil {
		return classifyEngineError("start", id, resourceContainer, err)
	}
	return nil
}

// Stop stops a container. The request itself is bounded by the timeout plus
// a grace period so a wedged daemon surfaces as a timeout.
func (d *DockerEngine) Stop(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	stopCtx, cancel := context.WithTimeout(ctx, timeout+constants.StopGracePeriod)
	defer cancel()

	if err := d.inner.ContainerStop(stopCtx, id, dockercontainer.StopOptions{Timeout: &seconds}); err != nil {
		return classifyEngineError("stop", id, resourceContainer, err)
	}
	return nil
}

// Remove deletes a stopped container together with its anonymous volumes
func (d *DockerEngine) Remove(ctx context.Context, id string) error {
	if err := d.inner.ContainerRemove(ctx, id, dockercontainer.RemoveOptions{RemoveVolumes: true}); err != nil {
		return classifyEngineError("remove", id, resourceContainer, err)
	}
	return nil
}

// Exec runs a command in the container and returns its stdout
func (d *DockerEngine) Exec(ctx context.Context, id string, cmd []string) ([]byte, error) {
	created, err := d.inner.ContainerExecCreate(ctx, id, dockercontainer.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, classifyEngineError("exec", id, resourceContainer, err)
	}

	attached, err := d.inner.ContainerExecAttach(ctx, created.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return nil, classifyEngineError("exec", id, resourceContainer, err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return nil, NewContainerError(ErrorTypeExecError, "exec", "failed to read exec output", err)
	}

	inspect, err := d.inner.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, classifyEngineError("exec", id, resourceContainer, err)
	}
	if inspect.ExitCode != 0 {
		ce := NewContainerError(ErrorTypeExecError, "exec",
			fmt.Sprintf("%s exited with status %d", strings.Join(cmd, " "), inspect.ExitCode), nil)
		ce.ContainerID = id
		ce.Output = stderr.String()
		return stdout.Bytes(), ce
	}

	return stdout.Bytes(), nil
}

func toContainer(info types.ContainerJSON) *simplejtypes.Container {
	c := &simplejtypes.Container{
		ID:        info.ID,
		Name:      strings.TrimPrefix(info.Name, "/"),
		CreatedAt: info.Created,
		Ports:     map[string]string{},
		Mounts:    map[string]string{},
	}
	if info.Config != nil {
		c.Image = info.Config.Image
	}
	if info.State != nil {
		c.Status = info.State.Status
	}
	if info.NetworkSettings != nil {
		for port, bindings := range info.NetworkSettings.Ports {
			for _, b := range bindings {
				c.Ports[string(port)] = fmt.Sprintf("%s:%s", b.HostIP, b.HostPort)
			}
		}
	}
	for _, m := range info.Mounts {
		c.Mounts[m.Source] = m.Destination
	}
	return c
}

// engineMessage is one JSON line of a pull or build progress stream
type engineMessage struct {
	Stream      string                 `json:"stream"`
	Status      string                 `json:"status"`
	ID          string                 `json:"id"`
	Progress    string                 `json:"progress"`
	Error       string                 `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Aux map[string]interface{} `json:"aux"`
}

func (m engineMessage) errorMessage() string {
	if strings.TrimSpace(m.Error) != "" {
		return strings.TrimSpace(m.Error)
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

func (m engineMessage) render() string {
	if m.Stream != "" {
		return strings.TrimRight(m.Stream, "\n")
	}
	if m.Status != "" {
		parts := make([]string, 0, 3)
		if id := strings.TrimSpace(m.ID); id != "" {
			parts = append(parts, id)
		}
		parts = append(parts, strings.TrimSpace(m.Status))
		if progress := strings.TrimSpace(m.Progress); progress != "" {
			parts = append(parts, progress)
		}
		return strings.Join(parts, " ")
	}
	if id, ok := m.Aux["ID"]; ok {
		return fmt.Sprintf("image id: %v", id)
	}
	return ""
}

// drainMessages consumes a progress stream, forwarding rendered lines to
// onOutput and returning the first error message the engine reports.
func drainMessages(r io.Reader, onOutput func(string)) error {
	decoder := json.NewDecoder(r)
	for {
		var msg engineMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode engine output: %w", err)
		}

		if errMsg := msg.errorMessage(); errMsg != "" {
			return errors.New(errMsg)
		}

		if line := msg.render(); line != "" && onOutput != nil {
			onOutput(line)
		}
	}
}
