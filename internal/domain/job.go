package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Job is one queued conversion request. It is immutable once enqueued.
type Job struct {
	InputPath      string    `json:"input_path"`
	OriginalName   string    `json:"original_filename"`
	StoredName     string    `json:"stored_filename"`
	AdditionalArgs string    `json:"additional_args"`
	EnqueueOrder   int64     `json:"enqueue_order"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

func NewJob(inputPath, originalName, additionalArgs string) Job {
	return Job{
		InputPath:      inputPath,
		OriginalName:   originalName,
		StoredName:     filepath.Base(inputPath),
		AdditionalArgs: strings.TrimSpace(additionalArgs),
		EnqueuedAt:     time.Now(),
	}
}

// Key identifies a job among the pending ones. Two pending jobs never share
// an original filename.
func (j Job) Key() string {
	return j.OriginalName
}

func (j Job) Validate() error {
	if j.OriginalName == "" {
		return invalidJob("missing original filename")
	}
	if j.InputPath == "" {
		return invalidJob("missing input path")
	}
	if filepath.Base(j.OriginalName) != j.OriginalName || j.OriginalName == "." || j.OriginalName == ".." {
		return invalidJob("original filename must not contain path elements")
	}
	return nil
}

// ExtraArgs splits the free-form argument string the way a shell would for
// simple whitespace separated flags.
func (j Job) ExtraArgs() []string {
	return strings.Fields(j.AdditionalArgs)
}

// CommandSpec describes one invocation of the external transform tool.
type CommandSpec struct {
	Path string
	Args []string
	Dir  string
}
