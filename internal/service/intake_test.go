package service

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/transq/internal/domain"
)

type submitFunc func(domain.Job) error

func (f submitFunc) Submit(job domain.Job) error { return f(job) }

func tempUpload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incoming")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func TestStoredName(t *testing.T) {
	pattern := regexp.MustCompile(`^upload_\d+_[0-9a-f]{8}\.mkv$`)

	first := StoredName("Holiday Film.MKV")
	second := StoredName("Holiday Film.MKV")

	assert.Regexp(t, pattern, first)
	assert.NotEqual(t, first, second)
}

func TestIntake_Accept(t *testing.T) {
	uploadDir := filepath.Join(t.TempDir(), "uploads")
	var submitted domain.Job
	intake := NewIntake(submitFunc(func(job domain.Job) error {
		submitted = job
		return nil
	}), uploadDir)

	tmp := tempUpload(t)
	job, err := intake.Accept(tmp, "movie.mp4", " --half-sbs ")

	require.NoError(t, err)
	assert.Equal(t, job, submitted)
	assert.Equal(t, "movie.mp4", job.OriginalName)
	assert.Equal(t, "--half-sbs", job.AdditionalArgs)
	assert.Equal(t, uploadDir, filepath.Dir(job.InputPath))
	assert.FileExists(t, job.InputPath)
	assert.NoFileExists(t, tmp)
}

func TestIntake_RejectedSubmissionRemovesFile(t *testing.T) {
	uploadDir := t.TempDir()
	intake := NewIntake(submitFunc(func(domain.Job) error {
		return domain.ErrDuplicateJob
	}), uploadDir)

	tmp := tempUpload(t)
	_, err := intake.Accept(tmp, "movie.mp4", "")

	assert.ErrorIs(t, err, domain.ErrDuplicateJob)
	assert.NoFileExists(t, tmp)
	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIntake_WithPipeline(t *testing.T) {
	env := newTestEnv(t, nil)
	intake := NewIntake(env.pipeline, env.uploadDir)

	_, err := intake.Accept(tempUpload(t), "movie.mp4", "")
	require.NoError(t, err)
	_, err = intake.Accept(tempUpload(t), "movie.mp4", "")
	assert.ErrorIs(t, err, domain.ErrDuplicateJob)

	assert.Equal(t, []string{"movie.mp4"}, env.pipeline.Status().Queue)
	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
