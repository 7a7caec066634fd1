package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/transq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *domain.Snapshot {
	current := domain.Job{InputPath: "/up/upload_b.mkv", OriginalName: "b.mkv", StoredName: "upload_b.mkv", EnqueueOrder: 2}
	return &domain.Snapshot{
		Version: domain.SnapshotVersion,
		Queue: []domain.Job{
			{InputPath: "/up/upload_c.mp4", OriginalName: "c.mp4", StoredName: "upload_c.mp4", AdditionalArgs: "--vr180", EnqueueOrder: 3},
		},
		Pending:    []string{"c.mp4"},
		Completed:  []string{"a.mp4"},
		Processing: true,
		CurrentJob: &current,
		Message:    "converting",
		SavedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewStore(t *testing.T) {
	t.Run("creates data dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "state")

		store, err := NewStore(dir)

		require.NoError(t, err)
		assert.DirExists(t, dir)
		assert.Equal(t, filepath.Join(dir, fileName), store.Path())
	})
}

func TestStoreLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file returns nil", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		snap, err := store.Load(ctx)

		assert.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("empty file returns nil", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte(""), 0600))
		store, err := NewStore(dir)
		require.NoError(t, err)

		snap, err := store.Load(ctx)

		assert.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("invalid JSON returns error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("invalid json"), 0600))
		store, err := NewStore(dir)
		require.NoError(t, err)

		snap, err := store.Load(ctx)

		assert.Error(t, err)
		assert.Nil(t, snap)
	})
}

func TestStoreSave(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips snapshot", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		want := sampleSnapshot()
		require.NoError(t, store.Save(ctx, want))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("replaces previous snapshot and leaves no temp file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, sampleSnapshot()))
		require.NoError(t, store.Save(ctx, &domain.Snapshot{Version: domain.SnapshotVersion, Message: "idle"}))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "idle", got.Message)
		assert.False(t, got.Processing)
		assert.Nil(t, got.CurrentJob)

		_, err = os.Stat(filepath.Join(dir, fileName+".tmp"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("uses legacy field names", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, sampleSnapshot()))

		data, err := os.ReadFile(filepath.Join(dir, fileName))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"uploaded_files"`)
		assert.Contains(t, string(data), `"converted_files"`)
		assert.Contains(t, string(data), `"original_filename"`)
	})

	t.Run("nil snapshot rejected", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		assert.Error(t, store.Save(ctx, nil))
	})
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, sampleSnapshot()))
		}()
		go func() {
			defer wg.Done()
			_, err := store.Load(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}
