package service

import (
	"slices"
	"time"

	"github.com/bnema/transq/internal/domain"
)

const (
	msgIdle       = "idle"
	msgPaused     = "paused"
	msgTerminated = "conversion terminated"
)

// pipelineState is what the pipeline is doing right now. processing is true
// exactly when current is set; both only change together under Pipeline.mu.
type pipelineState struct {
	processing bool
	current    *domain.Job
	message    string
	paused     bool
	pending    []string
	completed  []string
}

func (s *pipelineState) start(job domain.Job) {
	s.processing = true
	s.current = &job
	s.paused = false
	s.pending = without(s.pending, job.Key())
	s.message = "converting " + job.Key()
}

func (s *pipelineState) clear(message string) {
	s.processing = false
	s.current = nil
	s.paused = false
	s.message = message
}

func (s *pipelineState) currentName() string {
	if s.current == nil {
		return ""
	}
	return s.current.Key()
}

func (s *pipelineState) addPending(name string) {
	s.pending = pushFront(s.pending, name)
}

func (s *pipelineState) addCompleted(name string) {
	s.completed = pushFront(s.completed, name)
}

func (s *pipelineState) snapshot(queue []domain.Job) *domain.Snapshot {
	snap := &domain.Snapshot{
		Version:    domain.SnapshotVersion,
		Queue:      queue,
		Pending:    slices.Clone(s.pending),
		Completed:  slices.Clone(s.completed),
		Processing: s.processing,
		Message:    s.message,
		SavedAt:    time.Now().UTC(),
	}
	if s.processing && s.current != nil {
		job := *s.current
		snap.CurrentJob = &job
	}
	return snap
}

func (s *pipelineState) status(queue []string) domain.Status {
	return domain.Status{
		Processing:  s.processing,
		CurrentFile: s.currentName(),
		Message:     s.message,
		Paused:      s.paused,
		Pending:     nonNil(slices.Clone(s.pending)),
		Completed:   nonNil(slices.Clone(s.completed)),
		Queue:       nonNil(queue),
	}
}

// pushFront puts name first, dropping any earlier occurrence.
func pushFront(list []string, name string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, name)
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func without(list []string, names ...string) []string {
	out := list[:0:0]
	for _, n := range list {
		if !slices.Contains(names, n) {
			out = append(out, n)
		}
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
