package container

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// ErrorType represents the type of container error
type ErrorType string

const (
	// ErrorTypeRuntimeNotFound indicates the container engine is not reachable
	ErrorTypeRuntimeNotFound ErrorType = "runtime_not_found"
	// ErrorTypeContainerNotFound indicates the container was not found
	ErrorTypeContainerNotFound ErrorType = "container_not_found"
	// ErrorTypeImageNotFound indicates the image was not found
	ErrorTypeImageNotFound ErrorType = "image_not_found"
	// ErrorTypePermissionDenied indicates a permission error
	ErrorTypePermissionDenied ErrorType = "permission_denied"
	// ErrorTypeNetworkError indicates a network-related error
	ErrorTypeNetworkError ErrorType = "network_error"
	// ErrorTypeConflict indicates a name clash or a resource still in use
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeTimeout indicates the engine did not answer in time
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeBuildError indicates the image build failed
	ErrorTypeBuildError ErrorType = "build_error"
	// ErrorTypeExecError indicates an error during command execution
	ErrorTypeExecError ErrorType = "exec_error"
	// ErrorTypeUnknown indicates an unknown error
	ErrorTypeUnknown ErrorType = "unknown"
)

// resourceKind selects which not-found type an engine error maps to
type resourceKind int

const (
	resourceContainer resourceKind = iota
	resourceImage
)

// ContainerError represents a detailed container operation error
type ContainerError struct {
	Type        ErrorType
	Operation   string
	ContainerID string
	Message     string
	Underlying  error
	Output      string // engine output captured for the operation
}

// Error implements the error interface
func (e *ContainerError) Error() string {
	parts := []string{e.Message}

	if e.ContainerID != "" {
		parts = append(parts, fmt.Sprintf("id=%s", e.ContainerID))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("operation=%s", e.Operation))
	}

	if e.Output != "" {
		output := strings.TrimSpace(e.Output)
		if len(output) > 200 {
			output = output[:200] + "..."
		}
		parts = append(parts, fmt.Sprintf("output=%s", output))
	}

	if e.Underlying != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Underlying))
	}

	return strings.Join(parts, ", ")
}

// Unwrap returns the underlying error
func (e *ContainerError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns true if the error might be resolved by retrying
func (e *ContainerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetworkError, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewContainerError creates a new ContainerError
func NewContainerError(errType ErrorType, operation string, message string, underlying error) *ContainerError {
	return &ContainerError{
		Type:       errType,
		Operation:  operation,
		Message:    message,
		Underlying: underlying,
	}
}

// IsNotFound reports whether err is an engine not-found error for a
// container or an image.
func IsNotFound(err error) bool {
	var ce *ContainerError
	if errors.As(err, &ce) {
		return ce.Type == ErrorTypeContainerNotFound || ce.Type == ErrorTypeImageNotFound
	}
	return false
}

// IsTimeout reports whether err is an engine timeout
func IsTimeout(err error) bool {
	var ce *ContainerError
	if errors.As(err, &ce) {
		return ce.Type == ErrorTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyEngineError converts a docker client error into a ContainerError
func classifyEngineError(operation, id string, kind resourceKind, err error) *ContainerError {
	if err == nil {
		return nil
	}

	var existing *ContainerError
	if errors.As(err, &existing) {
		return existing
	}

	errType := classifyType(kind, err)
	ce := NewContainerError(errType, operation, messageFor(errType, operation), err)
	ce.ContainerID = id
	return ce
}

func classifyType(kind resourceKind, err error) ErrorType {
	switch {
	case client.IsErrNotFound(err) || errdefs.IsNotFound(err):
		if kind == resourceImage {
			return ErrorTypeImageNotFound
		}
		return ErrorTypeContainerNotFound
	case errors.Is(err, context.DeadlineExceeded) || errdefs.IsDeadline(err):
		return ErrorTypeTimeout
	case client.IsErrConnectionFailed(err) || errdefs.IsUnavailable(err):
		return ErrorTypeRuntimeNotFound
	case errdefs.IsUnauthorized(err) || errdefs.IsForbidden(err):
		return ErrorTypePermissionDenied
	case errdefs.IsConflict(err):
		return ErrorTypeConflict
	}
	return parseDockerError("", err)
}

func messageFor(errType ErrorType, operation string) string {
	switch errType {
	case ErrorTypeContainerNotFound:
		return "container not found"
	case ErrorTypeImageNotFound:
		return "image not found"
	case ErrorTypeTimeout:
		return fmt.Sprintf("%s timed out", operation)
	case ErrorTypeRuntimeNotFound:
		return "cannot reach the docker daemon"
	case ErrorTypePermissionDenied:
		return "permission denied by the docker daemon"
	case ErrorTypeConflict:
		return fmt.Sprintf("%s conflicts with an existing resource", operation)
	default:
		return fmt.Sprintf("%s failed", operation)
	}
}

// parseDockerError attempts to determine the error type from engine output
func parseDockerError(output string, err error) ErrorType {
	outputLower := strings.ToLower(output)
	errStr := ""
	if err != nil {
		errStr = strings.ToLower(err.Error())
	}

	combined := outputLower + " " + errStr

	switch {
	case strings.Contains(combined, "no such container"):
		return ErrorTypeContainerNotFound
	case strings.Contains(combined, "no such image") || strings.Contains(combined, "pull access denied"):
		return ErrorTypeImageNotFound
	case strings.Contains(combined, "permission denied") || strings.Contains(combined, "access denied"):
		return ErrorTypePermissionDenied
	case strings.Contains(combined, "is already in use") || strings.Contains(combined, "conflict"):
		return ErrorTypeConflict
	case strings.Contains(combined, "port is already allocated") || strings.Contains(combined, "network"):
		return ErrorTypeNetworkError
	case strings.Contains(combined, "cannot connect to the docker daemon") || strings.Contains(combined, "docker daemon"):
		return ErrorTypeRuntimeNotFound
	default:
		return ErrorTypeUnknown
	}
}
