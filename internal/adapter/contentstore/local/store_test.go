package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/transq/internal/domain"
)

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(dir, "a.mp4"), 10, old)
	writeFile(t, filepath.Join(dir, "b.mkv"), 20, time.Time{})
	writeFile(t, filepath.Join(dir, TempPrefix+"c.mp4"), 30, time.Time{})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	objects, err := store.List(context.Background())
	require.NoError(t, err)
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })

	require.Len(t, objects, 2)
	assert.Equal(t, "a.mp4", objects[0].Name)
	assert.Equal(t, int64(10), objects[0].Size)
	assert.WithinDuration(t, old, objects[0].Modified, time.Second)
	assert.Equal(t, "b.mkv", objects[1].Name)
}

func TestStore_List_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "converted")
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(dir))

	objects, err := store.List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, objects)
}

func TestStore_UploadPromotesTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	writeFile(t, store.Path("movie.mp4"), 5, time.Time{})
	writeFile(t, store.TempPath("movie.mp4"), 9, time.Time{})

	require.NoError(t, store.Upload(ctx, store.TempPath("movie.mp4"), "movie.mp4"))

	info, err := os.Stat(store.Path("movie.mp4"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size(), "previous output replaced")
	assert.NoFileExists(t, store.TempPath("movie.mp4"))
}

func TestStore_UploadFromOtherDir(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "out.mkv")
	writeFile(t, src, 3, time.Time{})

	require.NoError(t, store.Upload(context.Background(), src, "final.mkv"))
	assert.FileExists(t, store.Path("final.mkv"))
	assert.NoFileExists(t, src)
}

func TestStore_UploadSamePathIsNoop(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	writeFile(t, store.Path("x.mp4"), 1, time.Time{})

	assert.NoError(t, store.Upload(context.Background(), store.Path("x.mp4"), "x.mp4"))
	assert.FileExists(t, store.Path("x.mp4"))
}

func TestStore_UploadMissingSource(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	err = store.Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), "nope.mp4")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	writeFile(t, store.Path("x.mp4"), 1, time.Time{})

	require.NoError(t, store.Delete(ctx, "x.mp4"))
	assert.NoFileExists(t, store.Path("x.mp4"))

	assert.ErrorIs(t, store.Delete(ctx, "x.mp4"), domain.ErrNotFound)
}

func TestStore_RejectsPathNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../escape.mp4", "a/b.mp4"} {
		assert.Error(t, store.Delete(ctx, name), name)
		assert.Error(t, store.Upload(ctx, "/tmp/x", name), name)
	}
}

func TestStore_Open(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("video"), 0644))
	require.NoError(t, os.WriteFile(s.TempPath("b.mp4"), []byte("partial"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	body, obj, err := s.Open(ctx, "a.mp4")
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, int64(5), obj.Size)
	_, seekable := body.(io.Seeker)
	assert.True(t, seekable)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))

	for _, name := range []string{"missing.mp4", TempPrefix + "b.mp4", "sub", "../a.mp4"} {
		_, _, err := s.Open(ctx, name)
		assert.ErrorIs(t, err, domain.ErrNotFound, name)
	}
}
