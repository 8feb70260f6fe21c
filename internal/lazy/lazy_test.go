package lazy

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoadsOnce(t *testing.T) {
	calls := 0
	l := New(func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	assert.False(t, l.IsLoaded())
	_, ok := l.Peek()
	assert.False(t, ok, "peek must not load")
	assert.Equal(t, 0, calls)

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	v, ok = l.Peek()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestGetKeepsError(t *testing.T) {
	calls := 0
	l := New(func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("engine unavailable")
	})

	_, err := l.Get(context.Background())
	require.Error(t, err)
	_, err = l.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	assert.True(t, l.IsLoaded())
	_, ok := l.Peek()
	assert.False(t, ok)
}
