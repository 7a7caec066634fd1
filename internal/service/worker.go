package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
)

// Run is the worker loop. It processes one job at a time until ctx is
// cancelled. A job still running at that point is killed and left in the
// snapshot as the current job, so Recover resumes it on the next start.
func (p *Pipeline) Run(ctx context.Context) {
	p.startBacklog(ctx)
	defer p.bg.Wait()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	logger.Info.Printf("worker started (poll=%s)", p.opts.PollInterval)
	for {
		if ctx.Err() != nil {
			logger.Info.Printf("worker shutting down")
			return
		}

		if p.step(ctx) {
			continue
		}

		select {
		case <-ctx.Done():
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

// run identifies one claimed job.
type run struct {
	job    domain.Job
	gen    uint64
	handle domain.ProcessHandle
}

// step runs the next job if there is one and reports whether it did.
func (p *Pipeline) step(ctx context.Context) bool {
	r, ok, err := p.claim(ctx)
	if !ok {
		return false
	}
	p.checkpoint()
	if err != nil {
		if ctx.Err() != nil {
			// shutting down before the process started; keep the job current
			return true
		}
		p.finish(ctx, r, -1, err)
		return true
	}

	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(aborted)
		p.abort(r)
	})

	code, waitErr := p.procs.Wait(r.handle)
	if !stop() {
		<-aborted
	}

	p.finish(ctx, r, code, waitErr)
	return true
}

// claim dequeues the next job and marks it processing in one step, then
// spawns its process before ctrl is released so that a concurrent Terminate
// always finds the process it is asked to kill.
func (p *Pipeline) claim(ctx context.Context) (run, bool, error) {
	p.ctrl.Lock()
	defer p.ctrl.Unlock()

	p.mu.Lock()
	if p.state.processing || p.queue.len() == 0 {
		p.mu.Unlock()
		return run{}, false, nil
	}
	job, _ := p.queue.pop()
	p.state.start(job)
	p.gen++
	r := run{job: job, gen: p.gen}
	p.mu.Unlock()

	logger.Info.Printf("processing %s", logger.SanitizeForLog(job.Key()))

	removeIfExists(p.tempOutput(job.Key()))
	spec, err := p.transformer.Command(job, p.tempOutput(job.Key()))
	if err != nil {
		return r, true, fmt.Errorf("build command: %w", err)
	}
	r.handle, err = p.procs.Spawn(ctx, spec)
	if err != nil {
		return r, true, err
	}
	return r, true, nil
}

// abort stops the running job during shutdown. The job stays current so the
// snapshot written here lets Recover put it back at the head of the queue.
func (p *Pipeline) abort(r run) {
	p.ctrl.Lock()
	defer p.ctrl.Unlock()

	p.mu.Lock()
	if !p.state.processing || p.gen != r.gen {
		p.mu.Unlock()
		return
	}
	p.gen++
	p.mu.Unlock()

	logger.Info.Printf("shutdown: stopping %s, it will resume on next start", logger.SanitizeForLog(r.job.Key()))
	if _, err := p.procs.Terminate(context.Background(), p.opts.TerminateGrace); err != nil && !errors.Is(err, domain.ErrNoActiveJob) {
		logger.Error.Printf("shutdown: terminate %s: %v", logger.SanitizeForLog(r.job.Key()), err)
	}
	removeIfExists(p.tempOutput(r.job.Key()))
	p.checkpoint()
}

// finish records the outcome of a run. Runs already handled by Terminate or
// abort are ignored.
func (p *Pipeline) finish(ctx context.Context, r run, code int, runErr error) {
	name := r.job.Key()

	p.ctrl.Lock()
	p.mu.RLock()
	stale := !p.state.processing || p.gen != r.gen
	p.mu.RUnlock()
	if stale {
		p.ctrl.Unlock()
		return
	}

	var failure error
	switch {
	case runErr != nil:
		failure = runErr
	case code != 0:
		failure = fmt.Errorf("exit status %d", code)
	default:
		if _, err := os.Stat(p.tempOutput(name)); err != nil {
			failure = errors.New("output file missing")
		} else if err := p.outputs.Upload(ctx, p.tempOutput(name), name); err != nil {
			failure = fmt.Errorf("store output: %w", err)
		}
	}
	if failure != nil {
		removeIfExists(p.tempOutput(name))
	}
	removeIfExists(r.job.InputPath)

	p.mu.Lock()
	if failure != nil {
		p.state.clear(fmt.Sprintf("conversion failed: %s: %v", name, failure))
	} else {
		p.state.clear("conversion completed: " + name)
		if p.remote == nil {
			p.state.addCompleted(name)
		}
	}
	p.mu.Unlock()
	p.ctrl.Unlock()

	if failure != nil {
		logger.Error.Printf("job %s failed: %v", logger.SanitizeForLog(name), failure)
		p.checkpoint()
		return
	}
	logger.Info.Printf("job %s completed", logger.SanitizeForLog(name))

	if p.publisher != nil {
		p.checkpoint()
		if err := p.publish(ctx, name); err != nil {
			logger.Warn.Printf("%v; local copy kept for the next start", err)
		}
	}
	p.enforceQuota(ctx)
	p.checkpoint()
}

// publish pushes a local output to the remote store and lists it as
// completed once it is there.
func (p *Pipeline) publish(ctx context.Context, name string) error {
	if err := p.publisher.Publish(ctx, p.finalOutput(name), name); err != nil {
		return err
	}
	p.mu.Lock()
	p.state.addCompleted(name)
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) enforceQuota(ctx context.Context) {
	report, err := p.quota.Enforce(ctx, p.opts.MaxStorageBytes)
	if err != nil {
		logger.Warn.Printf("quota: %v", err)
	}
	if len(report.Evicted) == 0 {
		return
	}
	p.mu.Lock()
	p.state.completed = without(p.state.completed, report.Evicted...)
	p.mu.Unlock()
}

// startBacklog publishes outputs that recovery found only on local disk.
func (p *Pipeline) startBacklog(ctx context.Context) {
	if p.publisher == nil || len(p.backlog) == 0 {
		return
	}
	names := p.backlog
	p.backlog = nil

	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		for _, name := range names {
			if err := p.publish(ctx, name); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn.Printf("backlog: %v", err)
				continue
			}
			p.checkpoint()
		}
	}()
}
