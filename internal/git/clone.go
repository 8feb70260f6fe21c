package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"simplej/internal/constants"
	"simplej/internal/errors"
	"simplej/internal/logger"
)

// ShallowClone clones the default branch of repoURL into dest with depth 1.
// dest must not exist yet; a failed clone leaves nothing behind.
func ShallowClone(ctx context.Context, repoURL, dest string) error {
	return clone(ctx, repoURL, dest, 1, nil)
}

// CloneRepository makes a full clone of repoURL into dest, which may be an
// existing directory without a repository.
func CloneRepository(ctx context.Context, repoURL, dest string, progress io.Writer) error {
	return clone(ctx, repoURL, dest, 0, progress)
}

func clone(ctx context.Context, repoURL, dest string, depth int, progress io.Writer) error {
	if repoURL == "" {
		return errors.InvalidInput(repoURL, "repository URL")
	}

	absPath, err := filepath.Abs(dest)
	if err != nil {
		return errors.InvalidPath(dest, err.Error())
	}

	_, statErr := os.Stat(absPath)
	existed := statErr == nil

	if err := os.MkdirAll(filepath.Dir(absPath), constants.DirPermissions); err != nil {
		return errors.GitCloneFailed(repoURL, fmt.Errorf("failed to create parent directory: %w", err))
	}

	logger.WithContext(ctx).WithFields(logger.Fields{
		"url":   repoURL,
		"dest":  absPath,
		"depth": depth,
	}).Info("Cloning repository")

	_, err = git.PlainCloneContext(ctx, absPath, false, &git.CloneOptions{
		URL:          repoURL,
		Auth:         getAuthMethod(repoURL),
		Progress:     progress,
		Depth:        depth,
		SingleBranch: depth > 0,
	})
	if err != nil {
		if !existed {
			os.RemoveAll(absPath)
		} else {
			os.RemoveAll(filepath.Join(absPath, git.GitDirName))
		}

		switch {
		case strings.Contains(err.Error(), "authentication"):
			return errors.GitCloneFailed(repoURL, fmt.Errorf("authentication failed: %w", err))
		case stderrors.Is(err, transport.ErrRepositoryNotFound):
			return errors.GitCloneFailed(repoURL, fmt.Errorf("repository not found"))
		case ctx.Err() != nil:
			return errors.GitCloneFailed(repoURL, fmt.Errorf("clone cancelled: %w", ctx.Err()))
		}
		return errors.GitCloneFailed(repoURL, err)
	}

	return nil
}

// getAuthMethod picks credentials for repoURL from the environment. Local
// paths and file URLs need none.
func getAuthMethod(repoURL string) transport.AuthMethod {
	ep, err := transport.NewEndpoint(repoURL)
	if err != nil {
		return nil
	}

	switch ep.Protocol {
	case "ssh":
		user := ep.User
		if user == "" {
			user = "git"
		}
		if sshKey := os.Getenv("SSH_KEY_PATH"); sshKey != "" {
			if auth, err := ssh.NewPublicKeysFromFile(user, sshKey, ""); err == nil {
				return auth
			}
		}
		if auth, err := ssh.NewSSHAgentAuth(user); err == nil {
			return auth
		}

	case "http", "https":
		if username := os.Getenv("GIT_USERNAME"); username != "" {
			if password := os.Getenv("GIT_PASSWORD"); password != "" {
				return &http.BasicAuth{
					Username: username,
					Password: password,
				}
			}
		}
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			return &http.BasicAuth{
				Username: "token",
				Password: token,
			}
		}
	}

	return nil
}
