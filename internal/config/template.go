package config

import (
	"fmt"
	"os"
	"path/filepath"

	"simplej/internal/constants"
)

// settingsTemplate is written by new-project. Every source kind is listed so
// switching sources is a matter of editing one line.
const settingsTemplate = `# simplej project settings

[project]
# name defaults to the directory name
# name = "%[1]s"
# directory in the container bound to the project directory
mount_path = "%[2]s"

[image]
# choices are dockerfile, dockerhub, url, git, local_image
source = "dockerfile"

# dockerfile: build <context>/<dockerfile>
context = "%[3]s"
dockerfile = "%[4]s"

# dockerhub: pull name:tag
# name = "eipdev/alpine-jupyter-notebook"
# tag = "latest"

# url: download a Dockerfile into the build context, then build it
# url = "https://example.com/Dockerfile"

# git: shallow clone a repository and build the first <dockerfile> found in it
# git_url = "https://github.com/org/notebook-images.git"

# local_image: use an image that already exists in the local engine
# image_id = "sha256:..."

[container]
notebook_port = %[5]d
service_port = %[6]d
stop_timeout = "%[7]s"

[git]
# remote added as origin by git-start
# remote_url = "git@github.com:user/notebooks.git"
`

const dockerfileTemplate = `FROM %s

# Add notebook dependencies here, for example:
# RUN pip install --no-cache-dir pandas matplotlib
`

// WriteTemplate writes simplej.toml and a starter Dockerfile into dir unless
// they already exist. It returns the paths that were written.
func WriteTemplate(dir string) ([]string, error) {
	var written []string

	configPath := filepath.Join(dir, constants.ConfigFileName)
	if _, err := FindConfigFile(dir); err != nil {
		content := fmt.Sprintf(settingsTemplate,
			SanitizeName(filepath.Base(dir)),
			constants.DefaultMountPath,
			constants.DefaultBuildContext,
			constants.DefaultDockerfile,
			constants.DefaultNotebookPort,
			constants.DefaultServicePort,
			constants.DefaultStopTimeout.String(),
		)
		if err := os.WriteFile(configPath, []byte(content), constants.FilePermissions); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", configPath, err)
		}
		written = append(written, configPath)
	}

	contextDir := filepath.Join(dir, constants.DefaultBuildContext)
	dockerfilePath := filepath.Join(contextDir, constants.DefaultDockerfile)
	if _, err := os.Stat(dockerfilePath); os.IsNotExist(err) {
		if err := os.MkdirAll(contextDir, constants.DirPermissions); err != nil {
			return written, fmt.Errorf("failed to create build context: %w", err)
		}
		content := fmt.Sprintf(dockerfileTemplate, constants.DefaultBaseImage)
		if err := os.WriteFile(dockerfilePath, []byte(content), constants.FilePermissions); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", dockerfilePath, err)
		}
		written = append(written, dockerfilePath)
	}

	return written, nil
}
