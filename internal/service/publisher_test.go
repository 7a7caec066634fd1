package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/retry"
)

func fastRetry() *retry.Policy {
	return retry.NewPolicy(time.Millisecond, 5*time.Millisecond, 2)
}

func TestPublisher_Publish(t *testing.T) {
	remote := newMemStore()
	remote.failUntil = 3
	path := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	err := NewPublisher(remote, fastRetry()).Publish(context.Background(), path, "movie.mp4")

	require.NoError(t, err)
	assert.True(t, remote.has("movie.mp4"))
	assert.Equal(t, 4, remote.uploads)
	assert.NoFileExists(t, path)
}

func TestPublisher_MissingLocalFile(t *testing.T) {
	remote := newMemStore()

	err := NewPublisher(remote, fastRetry()).Publish(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "nope.mp4")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, remote.uploads, "nothing to retry")
}

func TestPublisher_CancelledKeepsLocalCopy(t *testing.T) {
	remote := newMemStore()
	remote.failUntil = 1 << 30
	path := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := NewPublisher(remote, fastRetry()).Publish(ctx, path, "movie.mp4")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.FileExists(t, path)
	assert.False(t, remote.has("movie.mp4"))
}
