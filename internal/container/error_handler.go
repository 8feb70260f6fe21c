package container

import (
	"errors"
	"strings"
)

// ErrorHandler provides user-friendly error messages and recovery suggestions
type ErrorHandler struct{}

// NewErrorHandler creates a new error handler
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{}
}

// GetUserMessage returns a user-friendly error message with recovery suggestions
func (h *ErrorHandler) GetUserMessage(err error) string {
	var containerErr *ContainerError
	if !errors.As(err, &containerErr) {
		return err.Error()
	}

	var message strings.Builder
	message.WriteString(containerErr.Message)

	switch containerErr.Type {
	case ErrorTypeRuntimeNotFound:
		message.WriteString("\n\nPossible solutions:")
		message.WriteString("\n• Ensure Docker is installed: https://docs.docker.com/get-docker/")
		message.WriteString("\n• Check if Docker daemon is running: 'docker ps'")
		message.WriteString("\n• Check DOCKER_HOST if you use a remote engine")

	case ErrorTypeImageNotFound:
		message.WriteString("\n\nPossible solutions:")
		message.WriteString("\n• Check the image name and tag in simplej.toml")
		message.WriteString("\n• Prepare the image again: 'simplej prepare-image'")
		message.WriteString("\n• Clear a stale record: 'simplej remove-image'")

	case ErrorTypePermissionDenied:
		message.WriteString("\n\nPossible solutions:")
		message.WriteString("\n• Add your user to the docker group: 'sudo usermod -aG docker $USER'")
		message.WriteString("\n• Log out and back in for group changes to take effect")
		message.WriteString("\n• Verify you have access to the registry")

	case ErrorTypeNetworkError:
		if strings.Contains(strings.ToLower(containerErr.Error()), "port is already allocated") {
			message.WriteString("\n\nPort conflict detected. Possible solutions:")
			message.WriteString("\n• Stop the container using the port: 'docker ps' to find it")
			message.WriteString("\n• Change container.notebook_port in simplej.toml")
		} else {
			message.WriteString("\n\nNetwork issue detected. Possible solutions:")
			message.WriteString("\n• Check your network connectivity")
			message.WriteString("\n• Try restarting Docker")
		}

	case ErrorTypeConflict:
		message.WriteString("\n\nPossible solutions:")
		message.WriteString("\n• Stop the container first: 'simplej stop-container'")
		message.WriteString("\n• Remove a leftover container with the same name: 'docker rm <name>'")

	case ErrorTypeContainerNotFound:
		message.WriteString("\n\nContainer not found. Possible solutions:")
		message.WriteString("\n• Clear the stale record: 'simplej remove-container'")
		message.WriteString("\n• The container may have been removed outside simplej")

	case ErrorTypeTimeout:
		message.WriteString("\n\nThe engine did not answer in time; check 'docker ps' and retry")
	}

	if containerErr.Output != "" && containerErr.Type != ErrorTypeUnknown {
		cleaned := strings.TrimSpace(containerErr.Output)
		if len(cleaned) > 0 && len(cleaned) < 500 {
			message.WriteString("\n\nDocker output:\n")
			message.WriteString(cleaned)
		}
	}

	return message.String()
}

// IsRecoverable returns true if the error might be resolved by user action
func (h *ErrorHandler) IsRecoverable(err error) bool {
	var containerErr *ContainerError
	if !errors.As(err, &containerErr) {
		return false
	}

	switch containerErr.Type {
	case ErrorTypeRuntimeNotFound, ErrorTypeImageNotFound,
		ErrorTypePermissionDenied, ErrorTypeNetworkError,
		ErrorTypeConflict, ErrorTypeContainerNotFound:
		return true
	default:
		return false
	}
}
