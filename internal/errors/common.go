package errors

import "fmt"

// Configuration Errors
func ConfigNotFound(path string) *SimplejError {
	return NewWithDetails(ErrConfigNotFound, "configuration file not found", fmt.Sprintf("path: %s", path))
}

func ConfigParseError(path string, cause error) *SimplejError {
	return WrapWithDetails(ErrConfigParse, "failed to parse configuration", fmt.Sprintf("path: %s", path), cause)
}

func ConfigValidationError(field, reason string) *SimplejError {
	return NewWithDetails(ErrConfigValidation, "configuration validation failed",
		fmt.Sprintf("field: %s, reason: %s", field, reason))
}

// State Errors
func ProjectNotInitialized(dir string) *SimplejError {
	return NewWithDetails(ErrProjectNotInitialized, "project is not initialized, run new-project first",
		fmt.Sprintf("path: %s", dir))
}

func StateReadError(cause error) *SimplejError {
	return Wrap(ErrStateRead, "failed to read project state", cause)
}

func StateWriteError(cause error) *SimplejError {
	return Wrap(ErrStateWrite, "failed to write project state", cause)
}

func StateMigrationError(cause error) *SimplejError {
	return Wrap(ErrStateMigration, "failed to migrate project state", cause)
}

func StateInvariantViolation(reason string) *SimplejError {
	return NewWithDetails(ErrStateInvariant, "project state invariant violated", reason)
}

// Engine Errors
func ImageNotFound(id string) *SimplejError {
	return NewWithDetails(ErrImageNotFound, "image not found", fmt.Sprintf("id: %s", id))
}

func ContainerNotFound(id string) *SimplejError {
	return NewWithDetails(ErrContainerNotFound, "container not found", fmt.Sprintf("id: %s", id))
}

func ContainerNotRunning(id, status string) *SimplejError {
	return NewWithDetails(ErrContainerNotRunning, "container is not running",
		fmt.Sprintf("id: %s, status: %s", id, status))
}

func EngineTimeout(operation string, cause error) *SimplejError {
	return WrapWithDetails(ErrEngineTimeout, "container engine timed out",
		fmt.Sprintf("operation: %s", operation), cause)
}

func EngineUnavailable(cause error) *SimplejError {
	return Wrap(ErrEngineUnavailable, "container engine is not reachable", cause)
}

func TokenNotFound(id string) *SimplejError {
	return NewWithDetails(ErrTokenNotFound, "no running notebook server found in container",
		fmt.Sprintf("id: %s", id))
}

// Image Provisioning Errors
func DockerfileNotFound(name, root string) *SimplejError {
	return NewWithDetails(ErrDockerfileNotFound, "dockerfile not found",
		fmt.Sprintf("name: %s, searched: %s", name, root))
}

func DownloadFailed(url string, cause error) *SimplejError {
	return WrapWithDetails(ErrDownloadFailed, "failed to download dockerfile",
		fmt.Sprintf("url: %s", url), cause)
}

// Git Errors
func BranchPrecondition(operation, required, current string) *SimplejError {
	return NewWithDetails(ErrBranchPrecondition,
		fmt.Sprintf("%s is only allowed on branch %s", operation, required),
		fmt.Sprintf("current branch: %s", current))
}

func GitRepoNotFound(path string) *SimplejError {
	return NewWithDetails(ErrGitRepoNotFound, "git repository not found", fmt.Sprintf("path: %s", path))
}

func GitRepoExists(path string) *SimplejError {
	return NewWithDetails(ErrGitRepoExists, "git repository already initialized", fmt.Sprintf("path: %s", path))
}

func GitCloneFailed(url string, cause error) *SimplejError {
	return WrapWithDetails(ErrGitCloneFailed, "failed to clone repository",
		fmt.Sprintf("url: %s", url), cause)
}

func GitRemoteNotFound(name string) *SimplejError {
	return NewWithDetails(ErrGitRemoteNotFound, "git remote not configured", fmt.Sprintf("remote: %s", name))
}

func GitMergeFailed(source, target string, cause error) *SimplejError {
	return WrapWithDetails(ErrGitMergeFailed, "failed to merge branches",
		fmt.Sprintf("source: %s, target: %s", source, target), cause)
}

func GitPushFailed(remote string, cause error) *SimplejError {
	return WrapWithDetails(ErrGitPushFailed, "failed to push", fmt.Sprintf("remote: %s", remote), cause)
}

func NothingToCommit(branch string) *SimplejError {
	return NewWithDetails(ErrNothingToCommit, "nothing to commit, working tree clean", fmt.Sprintf("branch: %s", branch))
}

// Validation Errors
func ValidationFailed(field, value, reason string) *SimplejError {
	return NewWithDetails(ErrValidationFailed, "validation failed",
		fmt.Sprintf("field: %s, value: %s, reason: %s", field, value, reason))
}

func InvalidInput(input, expected string) *SimplejError {
	return NewWithDetails(ErrInvalidInput, "invalid input",
		fmt.Sprintf("input: %s, expected: %s", input, expected))
}

func InvalidPath(path, reason string) *SimplejError {
	return NewWithDetails(ErrInvalidPath, "invalid path",
		fmt.Sprintf("path: %s, reason: %s", path, reason))
}

func InvalidPort(port interface{}, reason string) *SimplejError {
	return NewWithDetails(ErrInvalidPort, "invalid port",
		fmt.Sprintf("port: %v, reason: %s", port, reason))
}

// Unexpected wraps any engine or version-control failure that has no more
// specific classification.
func Unexpected(operation string, cause error) *SimplejError {
	return WrapWithDetails(ErrUnexpected, "unexpected failure", fmt.Sprintf("operation: %s", operation), cause)
}
