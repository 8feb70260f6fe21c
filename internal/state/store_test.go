package state

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"simplej/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFreshProjectIsEmpty(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	s := openStore(t, dir)
	assert.True(t, Exists(dir))

	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
	assert.False(t, rec.HasImage())
	assert.False(t, rec.HasContainer())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())

	records := []Record{
		{ImageID: "sha256:aaa"},
		{ImageID: "sha256:aaa", ContainerID: "c1"},
		{ImageID: "sha256:bbb", ContainerID: "c1"},
		{ContainerID: "c1"}, // image removed while the container is kept
		{},
	}

	for i, r := range records {
		t.Run(fmt.Sprintf("record-%d", i), func(t *testing.T) {
			require.NoError(t, s.Save(ctx, r))
			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, r, loaded)
		})
	}
}

func TestStatePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, Record{ImageID: "img", ContainerID: "ctr"}))
	require.NoError(t, first.Close())

	second := openStore(t, dir)
	rec, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Record{ImageID: "img", ContainerID: "ctr"}, rec)
}

func TestContainerRequiresImage(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())

	err := s.Save(ctx, Record{ContainerID: "c1"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrStateInvariant))

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Save(ctx, Record{ImageID: "img"}))

	err := s.Update(ctx, func(rec *Record) error {
		rec.ContainerID = "never-saved"
		return fmt.Errorf("engine failed")
	})
	require.Error(t, err)

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Record{ImageID: "img"}, rec)
}

func TestClearField(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Save(ctx, Record{ImageID: "img", ContainerID: "ctr"}))

	prev, err := s.ClearField(ctx, FieldContainerID)
	require.NoError(t, err)
	assert.Equal(t, "ctr", prev)

	prev, err = s.ClearField(ctx, FieldContainerID)
	require.NoError(t, err)
	assert.Empty(t, prev, "clearing an absent field reports nothing to remove")

	prev, err = s.ClearField(ctx, FieldImageID)
	require.NoError(t, err)
	assert.Equal(t, "img", prev)

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)

	_, err = s.ClearField(ctx, Field("bogus"))
	assert.Error(t, err)
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, dir)
	require.NoError(t, s.Save(ctx, Record{ImageID: "0"}))

	other := openStore(t, dir)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		store := s
		if i%2 == 1 {
			store = other
		}
		go func(store *Store) {
			defer wg.Done()
			err := store.Update(ctx, func(rec *Record) error {
				var v int
				fmt.Sscanf(rec.ImageID, "%d", &v)
				rec.ImageID = fmt.Sprintf("%d", v+1)
				return nil
			})
			assert.NoError(t, err)
		}(store)
	}
	wg.Wait()

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", n), rec.ImageID)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())

	require.NoError(t, s.AppendEvent(ctx, "prepare-image", "sha256:aaa"))
	require.NoError(t, s.AppendEvent(ctx, "run-container", "ctr"))
	require.NoError(t, s.AppendEvent(ctx, "stop-container", "ctr"))

	events, err := s.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "stop-container", events[0].Operation)
	assert.Equal(t, "run-container", events[1].Operation)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}
