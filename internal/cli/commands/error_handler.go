package commands

import (
	stderrors "errors"
	"fmt"
	"strings"

	"simplej/internal/container"
	"simplej/internal/errors"
	"simplej/internal/logger"

	"github.com/spf13/cobra"
)

// commandError is an error rewritten for the terminal that still unwraps to
// the original so exit codes can be derived from it
type commandError struct {
	message string
	err     error
}

func (e *commandError) Error() string { return e.message }
func (e *commandError) Unwrap() error { return e.err }

// tips are appended to errors carrying these codes
var tips = map[errors.ErrorCode]string{
	errors.ErrProjectNotInitialized: "Run 'simplej new-project' in the project directory, or pass it with --project-dir.",
	errors.ErrNoImage:               "Run 'simplej prepare-image' to build or pull the project image.",
	errors.ErrNoContainer:           "Run 'simplej run-container' to create the project container.",
	errors.ErrGitRepoNotFound:       "Run 'simplej git-start' to put the project under version control.",
	errors.ErrGitRemoteNotFound:     "Set git.remote_url in simplej.toml before running git-start, or add origin with git remote add.",
	errors.ErrBranchPrecondition:    "Use 'simplej status' to see where the working tree is.",
	errors.ErrDockerfileNotFound:    "Check image.context and image.dockerfile in simplej.toml.",
}

// HandleError processes errors and provides user-friendly output. The result
// is one line; --verbose keeps every recovery hint of an engine failure.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	// Engine failures carry recovery hints of their own
	var containerErr *container.ContainerError
	if stderrors.As(err, &containerErr) {
		logger.WithError(err).Debug("Container operation failed")

		userMessage := container.NewErrorHandler().GetUserMessage(containerErr)
		hints := strings.TrimSpace(strings.TrimPrefix(userMessage, containerErr.Message))
		if hints == "" {
			return err
		}
		if logger.IsDebug() {
			return &commandError{message: fmt.Sprintf("%v\n\n%s", err, hints), err: err}
		}
		if hint := firstHint(hints); hint != "" {
			return &commandError{message: fmt.Sprintf("%v. Tip: %s", err, hint), err: err}
		}
		return err
	}

	if tip, ok := tips[errors.GetCode(err)]; ok {
		return &commandError{message: fmt.Sprintf("%v. Tip: %s", err, tip), err: err}
	}

	switch errStr := err.Error(); {
	case strings.Contains(errStr, "permission denied"):
		return &commandError{
			message: fmt.Sprintf("%v. Tip: Check that you can write to the project directory and reach the Docker socket.", err),
			err:     err,
		}
	default:
		return err
	}
}

// firstHint picks the first suggestion out of a rendered hint block, or its
// first line when it has no list
func firstHint(hints string) string {
	var first string
	for _, line := range strings.Split(hints, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "•") {
			return strings.TrimSpace(strings.TrimPrefix(line, "•"))
		}
		if first == "" {
			first = line
		}
	}
	return first
}

// ExitCode picks the process exit status for err
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var containerErr *container.ContainerError
	if stderrors.As(err, &containerErr) {
		// Use specific exit codes for different error types
		switch containerErr.Type {
		case container.ErrorTypeRuntimeNotFound:
			return 127 // Command not found
		case container.ErrorTypePermissionDenied:
			return 126 // Permission denied
		case container.ErrorTypeContainerNotFound, container.ErrorTypeImageNotFound:
			return 2 // No such file or directory
		}
		return 1
	}

	switch errors.GetCode(err) {
	case errors.ErrImageNotFound, errors.ErrContainerNotFound, errors.ErrDockerfileNotFound:
		return 2
	}
	return 1
}

// reportOnly turns the listed conditions into a logged notice. They describe
// a command that had nothing to do rather than one that failed.
func reportOnly(cmd *cobra.Command, err error, codes ...errors.ErrorCode) error {
	if err == nil {
		return nil
	}
	code := errors.GetCode(err)
	for _, c := range codes {
		if code == c {
			logger.WithContext(cmd.Context()).Info(err.Error())
			return nil
		}
	}
	return err
}
