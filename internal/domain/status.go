package domain

import (
	"io"
	"time"
)

// Status is the read view of the pipeline returned to callers.
type Status struct {
	Processing  bool     `json:"processing"`
	CurrentFile string   `json:"current_file"`
	Message     string   `json:"current_status"`
	Paused      bool     `json:"paused"`
	Pending     []string `json:"uploaded_files"`
	Completed   []string `json:"converted_files"`
	Queue       []string `json:"queue"`
}

type ProcessState string

const (
	ProcessRunning    ProcessState = "running"
	ProcessSuspended  ProcessState = "suspended"
	ProcessTerminated ProcessState = "terminated"
)

// ProcessHandle identifies the process tree executing the current job.
type ProcessHandle struct {
	PID       int          `json:"pid"`
	PGID      int          `json:"pgid"`
	State     ProcessState `json:"state"`
	StartedAt time.Time    `json:"started_at"`
}

type ControlOutcome string

const (
	OutcomeOK          ControlOutcome = "ok"
	OutcomePartial     ControlOutcome = "partial"
	OutcomeFailed      ControlOutcome = "failed"
	OutcomeNoActiveJob ControlOutcome = "no_active_job"
)

// ControlResult reports what a pause, resume or terminate request did to the
// process tree. Terminating a job whose processes had all exited already is
// OutcomeOK with zero affected: the job itself was still cancelled.
type ControlResult struct {
	Outcome      ControlOutcome `json:"outcome"`
	Affected     int            `json:"affected"`
	Failed       int            `json:"failed"`
	DeletedFiles []string       `json:"deleted_files,omitempty"`
}

// Outcome derives the aggregate outcome from per-process counts.
func Outcome(affected, failed int) ControlOutcome {
	switch {
	case affected > 0 && failed == 0:
		return OutcomeOK
	case affected > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// StoredObject is one entry of a content store listing.
type StoredObject struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Download is a completed output ready to be handed to a client: either a
// URL the client fetches itself or a body to stream. The caller closes Body.
type Download struct {
	Name   string
	URL    string
	Body   io.ReadCloser
	Object StoredObject
}
