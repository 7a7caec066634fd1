package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJob(t *testing.T) {
	job := NewJob("/data/uploads/upload_abc.mp4", "movie.mp4", "  --depth 1.5  ")

	assert.Equal(t, "upload_abc.mp4", job.StoredName)
	assert.Equal(t, "movie.mp4", job.Key())
	assert.Equal(t, "--depth 1.5", job.AdditionalArgs)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid", Job{InputPath: "/tmp/a.mp4", OriginalName: "a.mp4"}, false},
		{"missing name", Job{InputPath: "/tmp/a.mp4"}, true},
		{"missing input", Job{OriginalName: "a.mp4"}, true},
		{"path in name", Job{InputPath: "/tmp/a.mp4", OriginalName: "../a.mp4"}, true},
		{"dot dot", Job{InputPath: "/tmp/a.mp4", OriginalName: ".."}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidJob))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJob_ExtraArgs(t *testing.T) {
	assert.Equal(t, []string{"--depth", "1.5", "--half-sbs"}, Job{AdditionalArgs: "--depth  1.5\t--half-sbs"}.ExtraArgs())
	assert.Empty(t, Job{}.ExtraArgs())
}

func TestSnapshot_Resumable(t *testing.T) {
	a := Job{OriginalName: "a.mp4", InputPath: "/u/a"}
	b := Job{OriginalName: "b.mp4", InputPath: "/u/b"}

	t.Run("processing puts current job first", func(t *testing.T) {
		s := &Snapshot{Queue: []Job{b}, Processing: true, CurrentJob: &a}
		assert.Equal(t, []Job{a, b}, s.Resumable())
	})

	t.Run("idle snapshot ignores stale current job", func(t *testing.T) {
		s := &Snapshot{Queue: []Job{b}, CurrentJob: &a}
		assert.Equal(t, []Job{b}, s.Resumable())
	})

	t.Run("nil snapshot", func(t *testing.T) {
		var s *Snapshot
		assert.Empty(t, s.Resumable())
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(3, 0))
	assert.Equal(t, OutcomePartial, Outcome(2, 1))
	assert.Equal(t, OutcomeFailed, Outcome(0, 2))
	assert.Equal(t, OutcomeFailed, Outcome(0, 0))
}
