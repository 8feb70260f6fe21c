package container

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"
)

func TestClassifyEngineError(t *testing.T) {
	tests := []struct {
		name string
		kind resourceKind
		err  error
		want ErrorType
	}{
		{"container not found", resourceContainer, errdefs.NotFound(fmt.Errorf("No such container: abc")), ErrorTypeContainerNotFound},
		{"image not found", resourceImage, errdefs.NotFound(fmt.Errorf("No such image: foo")), ErrorTypeImageNotFound},
		{"conflict", resourceContainer, errdefs.Conflict(fmt.Errorf("name is already in use")), ErrorTypeConflict},
		{"unauthorized", resourceImage, errdefs.Unauthorized(fmt.Errorf("pull denied")), ErrorTypePermissionDenied},
		{"deadline", resourceContainer, fmt.Errorf("stop: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"daemon down", resourceContainer, fmt.Errorf("Cannot connect to the Docker daemon at unix:///var/run/docker.sock"), ErrorTypeRuntimeNotFound},
		{"port clash", resourceContainer, fmt.Errorf("Bind for 0.0.0.0:8888 failed: port is already allocated"), ErrorTypeNetworkError},
		{"other", resourceContainer, fmt.Errorf("something odd"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := classifyEngineError("op", "id", tt.kind, tt.err)
			assert.Equal(t, tt.want, ce.Type)
			assert.Equal(t, "id", ce.ContainerID)
			assert.ErrorIs(t, ce, tt.err)
		})
	}
}

func TestClassifyKeepsContainerError(t *testing.T) {
	original := NewContainerError(ErrorTypeBuildError, "build", "image build failed", nil)
	assert.Same(t, original, classifyEngineError("op", "", resourceImage, original))
	assert.Nil(t, classifyEngineError("op", "", resourceImage, nil))
}

func TestIsNotFoundAndTimeout(t *testing.T) {
	assert.True(t, IsNotFound(NewContainerError(ErrorTypeContainerNotFound, "inspect", "x", nil)))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NewContainerError(ErrorTypeImageNotFound, "inspect", "x", nil))))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))

	assert.True(t, IsTimeout(NewContainerError(ErrorTypeTimeout, "stop", "x", nil)))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(NewContainerError(ErrorTypeUnknown, "stop", "x", nil)))
}

func TestGetUserMessage(t *testing.T) {
	h := NewErrorHandler()

	msg := h.GetUserMessage(NewContainerError(ErrorTypeRuntimeNotFound, "ping", "cannot reach the docker daemon", nil))
	assert.Contains(t, msg, "cannot reach the docker daemon")
	assert.Contains(t, msg, "Possible solutions")

	wrapped := fmt.Errorf("run: %w", NewContainerError(ErrorTypeContainerNotFound, "inspect", "container not found", nil))
	assert.Contains(t, h.GetUserMessage(wrapped), "simplej remove-container")
	assert.True(t, h.IsRecoverable(wrapped))

	assert.Equal(t, "plain", h.GetUserMessage(fmt.Errorf("plain")))
	assert.False(t, h.IsRecoverable(fmt.Errorf("plain")))
}

func TestContainerErrorString(t *testing.T) {
	ce := NewContainerError(ErrorTypeExecError, "exec", "jupyter exited with status 1", fmt.Errorf("boom"))
	ce.ContainerID = "abc"
	ce.Output = "trace"
	assert.Equal(t, "jupyter exited with status 1, id=abc, operation=exec, output=trace, cause=boom", ce.Error())
}
