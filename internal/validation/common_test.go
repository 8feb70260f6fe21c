package validation

import (
	"testing"

	"simplej/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerName(t *testing.T) {
	assert.NoError(t, ContainerName("simplej-notebooks"))
	assert.NoError(t, ContainerName("abc123"))

	err := ContainerName("")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrValidationFailed))

	assert.Error(t, ContainerName("-leading-dash"))
	assert.Error(t, ContainerName("has space"))
}

func TestImageNameAndTag(t *testing.T) {
	assert.NoError(t, ImageName("jupyter/base-notebook"))
	assert.NoError(t, ImageName("eipdev/alpine-jupyter-notebook"))
	assert.NoError(t, ImageName("localhost:5000/team/img"))
	assert.Error(t, ImageName("Upper/Case"))
	assert.Error(t, ImageName(""))

	assert.NoError(t, ImageTag("latest"))
	assert.NoError(t, ImageTag("v1.2.3"))
	assert.Error(t, ImageTag(""))
	assert.Error(t, ImageTag(".hidden"))
}

func TestRelativePath(t *testing.T) {
	cleaned, err := RelativePath("docker/./build")
	require.NoError(t, err)
	assert.Equal(t, "docker/build", cleaned)

	_, err = RelativePath("/etc")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPath))

	_, err = RelativePath("../outside")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPath))

	_, err = RelativePath("")
	assert.Error(t, err)
}

func TestContainerPathAndFileName(t *testing.T) {
	assert.NoError(t, ContainerPath("/home/jovyan/work"))
	assert.Error(t, ContainerPath("work"))

	assert.NoError(t, FileName("Dockerfile"))
	assert.Error(t, FileName("sub/Dockerfile"))
	assert.Error(t, FileName(".."))
}

func TestPortNumber(t *testing.T) {
	assert.NoError(t, PortNumber(8888))
	assert.True(t, errors.HasCode(PortNumber(0), errors.ErrInvalidPort))
	assert.Error(t, PortNumber(70000))
}
