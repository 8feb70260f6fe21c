// Package constants defines application-wide constants to avoid magic numbers
package constants

import "time"

// Project layout
const (
	// ConfigFileName is the project configuration file in the project root
	ConfigFileName = "simplej.toml"

	// StateDirName holds everything simplej writes inside a project
	StateDirName = ".simplej"

	// StateFileName is the SQLite database holding the project record
	StateFileName = "state.db"

	// SourceDirName is where git sources are cloned before building
	SourceDirName = "source"

	// GlobalConfigFileName is the user-level defaults file in the XDG config dir
	GlobalConfigFileName = "config.toml"
)

// Container defaults
const (
	// DefaultMountPath is where the project directory is mounted in the container
	DefaultMountPath = "/home/jovyan/work"

	// DefaultNotebookPort is the Jupyter notebook port published by run-container
	DefaultNotebookPort = 8888

	// DefaultServicePort is the secondary service port (TensorBoard by default)
	DefaultServicePort = 6006

	// DefaultStopTimeout is how long the engine waits before killing on stop
	DefaultStopTimeout = 10 * time.Second

	// StopGracePeriod is added to the stop timeout before the client gives up
	StopGracePeriod = 5 * time.Second

	// ContainerNamePrefix prefixes every container simplej creates
	ContainerNamePrefix = "simplej-"

	// ImageRepositoryPrefix prefixes every image simplej builds
	ImageRepositoryPrefix = "simplej/"
)

// Image source defaults
const (
	// DefaultDockerfile is the Dockerfile name looked up in build contexts
	DefaultDockerfile = "Dockerfile"

	// DefaultBuildContext is the build context directory relative to the project
	DefaultBuildContext = "docker"

	// DefaultImageTag is used when a Docker Hub source omits its tag
	DefaultImageTag = "latest"

	// DefaultBaseImage seeds the starter Dockerfile written by new-project
	DefaultBaseImage = "jupyter/base-notebook:latest"
)

// Git workflow
const (
	// MasterBranch is the stable, published line
	MasterBranch = "master"

	// DevBranch is where edits are committed
	DevBranch = "dev"

	// RemoteName is the only remote the workflow pushes to
	RemoteName = "origin"

	// DefaultAuthorName is used when neither config nor git config name an author
	DefaultAuthorName = "simplej"

	// DefaultAuthorEmail is used when neither config nor git config name an author
	DefaultAuthorEmail = "simplej@localhost"

	// InitialCommitMessage is the message of the commit created by git-start
	InitialCommitMessage = "Initial commit"
)

// File System Permissions
const (
	// DirPermissions is the standard directory permissions for simplej directories
	DirPermissions = 0755

	// FilePermissions is the standard file permissions for simplej files
	FilePermissions = 0644
)

// Timeouts
const (
	// DefaultHTTPClientTimeout bounds Dockerfile downloads
	DefaultHTTPClientTimeout = 30 * time.Second

	// StateBusyTimeout is how long a command waits for another one holding the state lock
	StateBusyTimeout = 5 * time.Second

	// DefaultEventHistory is the number of events shown by project-info
	DefaultEventHistory = 10
)
