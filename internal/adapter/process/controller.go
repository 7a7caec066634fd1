// Package process runs the external transform tool and controls its whole
// process tree: suspend, resume and terminate reach every descendant, not
// only the direct child.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/port"
)

const (
	pollInterval = 50 * time.Millisecond
	killTimeout  = 5 * time.Second
	pipeDrain    = 5 * time.Second
)

type run struct {
	cmd    *exec.Cmd
	handle domain.ProcessHandle
	done   chan struct{}
	code   int
	err    error
}

func (r *run) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

type Controller struct {
	sink io.Writer

	mu   sync.Mutex
	cur  *run
	runs map[int]*run
	// group of the latest run, kept until it is seen empty
	group int
}

// NewController sends child stdout and stderr to sink. A nil sink discards it.
func NewController(sink io.Writer) *Controller {
	if sink == nil {
		sink = io.Discard
	}
	return &Controller{
		sink: sink,
		runs: make(map[int]*run),
	}
}

func (c *Controller) Spawn(ctx context.Context, spec domain.CommandSpec) (domain.ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProcessHandle{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil && !c.cur.exited() {
		return domain.ProcessHandle{}, fmt.Errorf("process %d is still running", c.cur.handle.PID)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	stdout := newLineWriter(c.sink, "[out] ")
	stderr := newLineWriter(c.sink, "[err] ")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// grandchildren may keep the pipes open after the child exits
	cmd.WaitDelay = pipeDrain
	startInNewGroup(cmd)

	if err := cmd.Start(); err != nil {
		return domain.ProcessHandle{}, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	pid := cmd.Process.Pid
	r := &run{
		cmd: cmd,
		handle: domain.ProcessHandle{
			PID:       pid,
			PGID:      groupID(pid),
			State:     domain.ProcessRunning,
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
	c.cur = r
	c.runs[pid] = r
	c.group = r.handle.PGID

	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			r.code = 0
		case errors.As(err, &exitErr):
			r.code = exitErr.ExitCode()
		default:
			r.code = -1
			r.err = err
		}
		close(r.done)
	}()

	logger.Info.Printf("spawned %s (pid=%d pgid=%d)", spec.Path, pid, r.handle.PGID)
	return r.handle, nil
}

// Wait blocks until the process started for handle exits. A process killed by
// a signal reports exit code -1.
func (c *Controller) Wait(handle domain.ProcessHandle) (int, error) {
	c.mu.Lock()
	r, ok := c.runs[handle.PID]
	c.mu.Unlock()
	if !ok {
		return -1, domain.ErrNoActiveJob
	}

	<-r.done

	c.mu.Lock()
	delete(c.runs, handle.PID)
	if c.cur == r {
		c.cur = nil
	}
	if c.group == r.handle.PGID && len(groupMembers(context.Background(), c.group)) == 0 {
		c.group = 0
	}
	c.mu.Unlock()

	return r.code, r.err
}

func (c *Controller) Current() (domain.ProcessHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.cur.exited() {
		return domain.ProcessHandle{}, false
	}
	return c.cur.handle, true
}

// members returns every live process of the current job: the tree below the
// root plus anything left in its process group. The root may already be gone.
func (c *Controller) members(ctx context.Context) []*process.Process {
	root := 0
	if c.cur != nil && !c.cur.exited() {
		root = c.cur.handle.PID
	}
	return jobMembers(ctx, root, c.group)
}

// Suspend stops the root first so it cannot fork while children are stopped.
func (c *Controller) Suspend(ctx context.Context) (domain.ControlResult, error) {
	return c.signalTree(ctx, false, domain.ProcessSuspended, stopGroup, func(ctx context.Context, p *process.Process) error {
		return p.SuspendWithContext(ctx)
	})
}

// Resume continues children before the root.
func (c *Controller) Resume(ctx context.Context) (domain.ControlResult, error) {
	return c.signalTree(ctx, true, domain.ProcessRunning, continueGroup, func(ctx context.Context, p *process.Process) error {
		return p.ResumeWithContext(ctx)
	})
}

func (c *Controller) signalTree(ctx context.Context, reverse bool, state domain.ProcessState, group func(int) error, signal func(context.Context, *process.Process) error) (domain.ControlResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := c.members(ctx)
	if len(members) == 0 {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, domain.ErrNoActiveJob
	}
	if reverse {
		slices.Reverse(members)
	}

	var res domain.ControlResult
	for _, p := range members {
		if err := signal(ctx, p); err != nil {
			if !alive(ctx, p) {
				continue
			}
			res.Failed++
			logger.Warn.Printf("signal pid %d: %v", p.Pid, err)
			continue
		}
		res.Affected++
	}
	// members forked after the walk
	if err := group(c.group); err != nil {
		logger.Debug.Printf("signal group %d: %v", c.group, err)
	}

	res.Outcome = domain.Outcome(res.Affected, res.Failed)
	if res.Affected > 0 && c.cur != nil {
		c.cur.handle.State = state
	}
	logger.Info.Printf("%s process tree %v: %s (affected=%d failed=%d)", state, pids(members), res.Outcome, res.Affected, res.Failed)
	return res, nil
}

// Terminate asks every process of the job to exit, waits up to grace, then
// kills whatever is left. It reports no active job only once the job's
// process group is empty; otherwise, when it returns, nothing of the job runs.
func (c *Controller) Terminate(ctx context.Context, grace time.Duration) (domain.ControlResult, error) {
	// shutdown terminates with an already cancelled context
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.cur
	pgid := c.group
	members := c.members(ctx)
	if len(members) == 0 {
		c.cur = nil
		c.group = 0
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, domain.ErrNoActiveJob
	}

	for _, p := range members {
		if err := p.TerminateWithContext(ctx); err != nil && alive(ctx, p) {
			logger.Warn.Printf("SIGTERM pid %d: %v", p.Pid, err)
		}
		// a stopped process only acts on SIGTERM once continued
		if err := p.ResumeWithContext(ctx); err != nil {
			logger.Debug.Printf("SIGCONT pid %d: %v", p.Pid, err)
		}
	}
	if err := terminateGroup(pgid); err != nil {
		logger.Warn.Printf("SIGTERM group %d: %v", pgid, err)
	}
	if err := continueGroup(pgid); err != nil {
		logger.Debug.Printf("SIGCONT group %d: %v", pgid, err)
	}

	if !waitGone(ctx, members, r, pgid, grace) {
		for _, p := range append(members, groupMembers(ctx, pgid)...) {
			if !alive(ctx, p) {
				continue
			}
			logger.Warn.Printf("pid %d survived %s grace period, killing", p.Pid, grace)
			if err := p.KillWithContext(ctx); err != nil && alive(ctx, p) {
				logger.Warn.Printf("SIGKILL pid %d: %v", p.Pid, err)
			}
		}
		if err := killGroup(pgid); err != nil {
			logger.Warn.Printf("SIGKILL group %d: %v", pgid, err)
		}
		waitGone(ctx, members, r, pgid, killTimeout)
	}

	var res domain.ControlResult
	for _, p := range members {
		if alive(ctx, p) {
			res.Failed++
		} else {
			res.Affected++
		}
	}
	seen := make(map[int32]bool, len(members))
	for _, p := range members {
		seen[p.Pid] = true
	}
	leftover := groupMembers(ctx, pgid)
	for _, p := range leftover {
		if !seen[p.Pid] {
			res.Failed++
		}
	}
	res.Outcome = domain.Outcome(res.Affected, res.Failed)
	if r != nil {
		r.handle.State = domain.ProcessTerminated
	}
	c.cur = nil
	if len(leftover) == 0 {
		c.group = 0
	}

	logger.Info.Printf("terminated process tree %v: %s (affected=%d failed=%d)", pids(members), res.Outcome, res.Affected, res.Failed)
	return res, nil
}

// waitGone polls until the direct child has been reaped and neither the
// members nor anything else in the group is alive, or until timeout.
func waitGone(ctx context.Context, members []*process.Process, r *run, pgid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	gone := func() bool {
		return (r == nil || r.exited()) && !anyAlive(ctx, members) && len(groupMembers(ctx, pgid)) == 0
	}
	for {
		if gone() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return gone()
		case <-ticker.C:
		}
	}
}

var _ port.ProcessController = (*Controller)(nil)
