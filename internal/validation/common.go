package validation

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"simplej/internal/errors"
)

var (
	// containerNameRegex validates container IDs and names
	containerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

	// imageNameRegex validates repository names such as org/image or registry:5000/org/image
	imageNameRegex = regexp.MustCompile(`^[a-z0-9]+([._-][a-z0-9]+)*(:[0-9]+)?(/[a-z0-9]+([._-][a-z0-9]+)*)*$`)

	// imageTagRegex validates image tags
	imageTagRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)
)

// ContainerName validates a container ID or name
func ContainerName(name string) error {
	if name == "" {
		return errors.ValidationFailed("container_name", name, "cannot be empty")
	}

	if len(name) > 255 {
		return errors.ValidationFailed("container_name", name, "too long (max 255 characters)")
	}

	if !containerNameRegex.MatchString(name) {
		return errors.ValidationFailed("container_name", name, "must start with a letter or digit and contain only [a-zA-Z0-9_.-]")
	}

	return nil
}

// ImageName validates a registry repository name
func ImageName(name string) error {
	if name == "" {
		return errors.ValidationFailed("image_name", name, "cannot be empty")
	}
	if !imageNameRegex.MatchString(name) {
		return errors.ValidationFailed("image_name", name, "must be a lowercase repository name such as org/image")
	}
	return nil
}

// ImageTag validates an image tag
func ImageTag(tag string) error {
	if !imageTagRegex.MatchString(tag) {
		return errors.ValidationFailed("image_tag", tag, "must match [A-Za-z0-9_][A-Za-z0-9_.-]{0,127}")
	}
	return nil
}

// RelativePath validates and cleans a path that must stay inside the project
func RelativePath(p string) (string, error) {
	if p == "" {
		return "", errors.InvalidPath(p, "cannot be empty")
	}

	if filepath.IsAbs(p) {
		return "", errors.InvalidPath(p, "must be relative to the project directory")
	}

	cleaned := filepath.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.InvalidPath(p, "path traversal detected")
	}

	return cleaned, nil
}

// ContainerPath validates an absolute path inside the container
func ContainerPath(p string) error {
	if p == "" {
		return errors.InvalidPath(p, "cannot be empty")
	}
	if !path.IsAbs(p) {
		return errors.InvalidPath(p, "must be an absolute container path")
	}
	return nil
}

// FileName validates a bare file name with no directory part
func FileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.ValidationFailed("file_name", name, "cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.ValidationFailed("file_name", name, "must not contain a directory part")
	}
	return nil
}

// PortNumber validates a single port number
func PortNumber(port int) error {
	if port <= 0 || port > 65535 {
		return errors.InvalidPort(port, "must be between 1 and 65535")
	}
	return nil
}

// NonEmptyString validates that a string is not empty or only whitespace
func NonEmptyString(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.ValidationFailed(field, s, "cannot be empty or only whitespace")
	}
	return nil
}
