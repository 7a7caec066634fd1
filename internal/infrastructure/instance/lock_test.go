package instance

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_SecondInstanceRejected(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	require.NoError(t, err)
	defer first.Release()

	assert.Equal(t, filepath.Join(dir, lockFile), first.Path())

	_, err = Acquire(dir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquire_AfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := Acquire(dir)
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}

func TestAcquire_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	l, err := Acquire(dir)
	require.NoError(t, err)
	defer l.Release()

	assert.DirExists(t, dir)
}

func TestRelease_Nil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
