package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", ShortID("sha256:0123456789abcdef"))
	assert.Equal(t, "0123456789ab", ShortID("0123456789abcdef0000"))
	assert.Equal(t, "short", ShortID("short"))
}

func TestRunning(t *testing.T) {
	var nilContainer *Container
	assert.False(t, nilContainer.Running())
	assert.False(t, (&Container{Status: "exited"}).Running())
	assert.True(t, (&Container{Status: "running"}).Running())
}
