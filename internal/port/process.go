package port

import (
	"context"
	"time"

	"github.com/bnema/transq/internal/domain"
)

// ProcessController owns the OS process tree running the current job.
// Only one tree is tracked at a time. Operations on an absent or already
// exited tree return domain.ErrNoActiveJob.
type ProcessController interface {
	Spawn(ctx context.Context, spec domain.CommandSpec) (domain.ProcessHandle, error)
	Wait(handle domain.ProcessHandle) (exitCode int, err error)
	Suspend(ctx context.Context) (domain.ControlResult, error)
	Resume(ctx context.Context) (domain.ControlResult, error)
	Terminate(ctx context.Context, grace time.Duration) (domain.ControlResult, error)
	Current() (domain.ProcessHandle, bool)
}
