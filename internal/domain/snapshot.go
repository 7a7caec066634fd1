package domain

import "time"

const SnapshotVersion = 1

// Snapshot is the durable record used to rebuild the pipeline after a restart.
//
// Processing is only ever true together with a non-nil CurrentJob; a snapshot
// taken mid-job lets recovery put that job back at the head of the queue.
type Snapshot struct {
	Version    int       `json:"version"`
	Queue      []Job     `json:"queue"`
	Pending    []string  `json:"uploaded_files"`
	Completed  []string  `json:"converted_files"`
	Processing bool      `json:"processing"`
	CurrentJob *Job      `json:"current_job,omitempty"`
	Message    string    `json:"current_status"`
	SavedAt    time.Time `json:"saved_at"`
}

// Resumable returns the queue as it should be rebuilt: the interrupted job,
// if any, followed by the persisted queue entries.
func (s *Snapshot) Resumable() []Job {
	if s == nil {
		return nil
	}
	jobs := make([]Job, 0, len(s.Queue)+1)
	if s.Processing && s.CurrentJob != nil {
		jobs = append(jobs, *s.CurrentJob)
	}
	return append(jobs, s.Queue...)
}
