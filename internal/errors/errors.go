// Package errors provides typed error definitions for simplej.
// Every condition a command can report maps to one ErrorCode so that callers
// can branch on the code instead of matching message text.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique identifier for different error types
type ErrorCode string

const (
	// Configuration errors
	ErrConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrConfigParse      ErrorCode = "CONFIG_PARSE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Project state errors
	ErrProjectNotInitialized ErrorCode = "PROJECT_NOT_INITIALIZED"
	ErrStateRead             ErrorCode = "STATE_READ"
	ErrStateWrite            ErrorCode = "STATE_WRITE"
	ErrStateMigration        ErrorCode = "STATE_MIGRATION"
	ErrStateInvariant        ErrorCode = "STATE_INVARIANT"

	// Engine lookups
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrImageNotFound     ErrorCode = "IMAGE_NOT_FOUND"
	ErrContainerNotFound ErrorCode = "CONTAINER_NOT_FOUND"

	// Missing prior state in the project record
	ErrNoImage     ErrorCode = "NO_IMAGE"
	ErrNoContainer ErrorCode = "NO_CONTAINER"

	// Container lifecycle
	ErrContainerNotRunning ErrorCode = "CONTAINER_NOT_RUNNING"
	ErrEngineTimeout       ErrorCode = "ENGINE_TIMEOUT"
	ErrEngineUnavailable   ErrorCode = "ENGINE_UNAVAILABLE"
	ErrTokenNotFound       ErrorCode = "TOKEN_NOT_FOUND"

	// Image provisioning
	ErrDockerfileNotFound ErrorCode = "DOCKERFILE_NOT_FOUND"
	ErrDownloadFailed     ErrorCode = "DOWNLOAD_FAILED"

	// Git workflow
	ErrBranchPrecondition ErrorCode = "BRANCH_PRECONDITION"
	ErrGitRepoNotFound    ErrorCode = "GIT_REPO_NOT_FOUND"
	ErrGitRepoExists      ErrorCode = "GIT_REPO_EXISTS"
	ErrGitCloneFailed     ErrorCode = "GIT_CLONE_FAILED"
	ErrGitRemoteNotFound  ErrorCode = "GIT_REMOTE_NOT_FOUND"
	ErrGitMergeFailed     ErrorCode = "GIT_MERGE_FAILED"
	ErrGitPushFailed      ErrorCode = "GIT_PUSH_FAILED"
	ErrNothingToCommit    ErrorCode = "NOTHING_TO_COMMIT"

	// Validation errors
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidPath      ErrorCode = "INVALID_PATH"
	ErrInvalidPort      ErrorCode = "INVALID_PORT"

	// Anything else reported by the engine or version control
	ErrUnexpected ErrorCode = "UNEXPECTED"
)

// SimplejError represents a structured error with additional context
type SimplejError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *SimplejError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *SimplejError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SimplejError carrying the same code.
func (e *SimplejError) Is(target error) bool {
	t, ok := target.(*SimplejError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context information to the error
func (e *SimplejError) WithContext(key string, value interface{}) *SimplejError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause error
func (e *SimplejError) WithCause(cause error) *SimplejError {
	e.Cause = cause
	return e
}

// New creates a new SimplejError
func New(code ErrorCode, message string) *SimplejError {
	return &SimplejError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails creates a new SimplejError with details
func NewWithDetails(code ErrorCode, message, details string) *SimplejError {
	return &SimplejError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap creates a new SimplejError that wraps an existing error
func Wrap(code ErrorCode, message string, cause error) *SimplejError {
	return &SimplejError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetails creates a new SimplejError with details that wraps an existing error
func WrapWithDetails(code ErrorCode, message, details string, cause error) *SimplejError {
	return &SimplejError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsSimplejError checks if an error is, or wraps, a SimplejError
func IsSimplejError(err error) bool {
	var se *SimplejError
	return stderrors.As(err, &se)
}

// GetCode extracts the error code from the first SimplejError in the chain
func GetCode(err error) ErrorCode {
	var se *SimplejError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode checks if an error has a specific error code
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsExpected reports whether err is one of the conditions commands report
// without treating them as crashes: missing prior state, engine lookups that
// came back empty, timeouts that were recovered from and branch preconditions.
func IsExpected(err error) bool {
	switch GetCode(err) {
	case ErrNotFound, ErrImageNotFound, ErrContainerNotFound,
		ErrNoImage, ErrNoContainer, ErrContainerNotRunning,
		ErrEngineTimeout, ErrBranchPrecondition, ErrDockerfileNotFound,
		ErrGitRepoExists, ErrNothingToCommit:
		return true
	default:
		return false
	}
}

// Common pre-defined errors for consistency
var (
	ErrNoImageRecorded     = New(ErrNoImage, "no image recorded for this project, run prepare-image first")
	ErrNoContainerRecorded = New(ErrNoContainer, "no container recorded for this project, run run-container first")
	ErrNotRunning          = New(ErrContainerNotRunning, "container is not running")
)
