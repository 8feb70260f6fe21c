// Package types holds value types shared between the engine, the managers
// and the CLI.
package types

// Container represents a container instance
type Container struct {
	ID        string
	Name      string
	Image     string
	Status    string            // engine state: created, running, exited, ...
	Ports     map[string]string // container port -> host binding
	Mounts    map[string]string // host path -> container path
	CreatedAt string
}

// Running reports whether the engine considers the container running
func (c *Container) Running() bool {
	return c != nil && c.Status == "running"
}

// ShortID returns the first twelve characters of the id, as docker prints it
func (c *Container) ShortID() string {
	return ShortID(c.ID)
}

// Image represents an image present in the local engine
type Image struct {
	ID   string
	Tags []string
	Size int64
}

// ShortID returns the truncated id without the digest algorithm prefix
func (i *Image) ShortID() string {
	return ShortID(i.ID)
}

// ShortID truncates an engine id for display
func ShortID(id string) string {
	if len(id) > 7 && id[:7] == "sha256:" {
		id = id[7:]
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
