package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/infrastructure/retry"
	"github.com/bnema/transq/internal/port"
)

const tempPrefix = "_tmp_"

type Options struct {
	UploadDir       string
	ConvertedDir    string
	MaxStorageBytes int64
	PollInterval    time.Duration
	TerminateGrace  time.Duration

	// Remote, when set, is the authoritative store for completed outputs;
	// they are published there and removed from ConvertedDir.
	Remote      port.ContentStore
	RetryPolicy *retry.Policy
	// LinkTTL bounds download URLs handed out by stores that support them.
	LinkTTL time.Duration
}

// Pipeline runs queued jobs one at a time through the transform tool.
//
// Locking: ctrl serialises the transitions that touch the running process
// (claim+spawn, finish, terminate, pause, resume). mu guards the queue and
// state. saveMu orders checkpoints. Lock order is ctrl, saveMu, mu.
type Pipeline struct {
	snapshots   port.SnapshotStore
	procs       port.ProcessController
	transformer port.Transformer
	outputs     port.ContentStore
	remote      port.ContentStore
	publisher   *Publisher
	quota       *QuotaManager
	events      EventPublisher
	opts        Options

	ctrl   sync.Mutex
	saveMu sync.Mutex
	mu     sync.RWMutex
	queue  jobQueue
	state  pipelineState
	gen    uint64

	wake    chan struct{}
	backlog []string
	bg      sync.WaitGroup
}

func NewPipeline(
	snapshots port.SnapshotStore,
	procs port.ProcessController,
	transformer port.Transformer,
	outputs port.ContentStore,
	events EventPublisher,
	opts Options,
) *Pipeline {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.TerminateGrace <= 0 {
		opts.TerminateGrace = 3 * time.Second
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = 15 * time.Minute
	}

	p := &Pipeline{
		snapshots:   snapshots,
		procs:       procs,
		transformer: transformer,
		outputs:     outputs,
		remote:      opts.Remote,
		events:      events,
		opts:        opts,
		state:       pipelineState{message: msgIdle},
		wake:        make(chan struct{}, 1),
	}
	if p.remote != nil {
		p.publisher = NewPublisher(p.remote, opts.RetryPolicy)
	}
	p.quota = NewQuotaManager(p.authority())
	return p
}

// authority is the store whose listing defines the completed outputs.
func (p *Pipeline) authority() port.ContentStore {
	if p.remote != nil {
		return p.remote
	}
	return p.outputs
}

func (p *Pipeline) tempOutput(name string) string {
	return filepath.Join(p.opts.ConvertedDir, tempPrefix+name)
}

func (p *Pipeline) finalOutput(name string) string {
	return filepath.Join(p.opts.ConvertedDir, name)
}

// Submit appends job to the queue and wakes the worker.
func (p *Pipeline) Submit(job domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.queue.contains(job.Key()) || p.state.currentName() == job.Key() {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, job.Key())
	}
	job = p.queue.push(job)
	p.state.addPending(job.Key())
	p.mu.Unlock()

	logger.Info.Printf("queued %s (order=%d)", logger.SanitizeForLog(job.Key()), job.EnqueueOrder)
	p.checkpoint()
	p.notify()
	return nil
}

// CancelPending removes a job that has not started yet and deletes its input.
// It reports false when no pending job has that name, including when the job
// was already dequeued.
func (p *Pipeline) CancelPending(name string) (bool, error) {
	p.mu.Lock()
	job, ok := p.queue.remove(name)
	if ok {
		p.state.pending = without(p.state.pending, name)
	}
	p.mu.Unlock()

	if !ok {
		return false, nil
	}

	removeIfExists(job.InputPath)
	logger.Info.Printf("cancelled pending job %s", logger.SanitizeForLog(name))
	p.checkpoint()
	return true, nil
}

// DeleteCompleted removes a completed output from the authoritative store and
// the completed list.
func (p *Pipeline) DeleteCompleted(ctx context.Context, name string) error {
	err := p.authority().Delete(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	p.mu.Lock()
	p.state.completed = without(p.state.completed, name)
	p.mu.Unlock()

	p.checkpoint()
	return err
}

func (p *Pipeline) Status() domain.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.status(p.queue.names())
}

// Pause suspends the running process tree.
func (p *Pipeline) Pause(ctx context.Context) (domain.ControlResult, error) {
	return p.control(ctx, p.procs.Suspend, func(s *pipelineState) {
		s.paused = true
		s.message = msgPaused
	})
}

func (p *Pipeline) Resume(ctx context.Context) (domain.ControlResult, error) {
	return p.control(ctx, p.procs.Resume, func(s *pipelineState) {
		s.paused = false
		s.message = "converting " + s.currentName()
	})
}

func (p *Pipeline) control(ctx context.Context, op func(context.Context) (domain.ControlResult, error), apply func(*pipelineState)) (domain.ControlResult, error) {
	p.ctrl.Lock()
	defer p.ctrl.Unlock()

	p.mu.RLock()
	processing := p.state.processing
	p.mu.RUnlock()
	if !processing {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, nil
	}

	res, err := op(ctx)
	if errors.Is(err, domain.ErrNoActiveJob) {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, nil
	}
	if err != nil {
		return res, err
	}

	if res.Affected > 0 {
		p.mu.Lock()
		apply(&p.state)
		p.mu.Unlock()
		p.checkpoint()
	}
	return res, nil
}

// Terminate kills the running job's process tree and removes its input and
// partial output. The worker is woken so the next job starts right away.
// When nothing is running it returns OutcomeNoActiveJob and changes nothing.
// A job whose processes already exited is still cancelled and reported as
// OutcomeOK with no affected processes.
func (p *Pipeline) Terminate(ctx context.Context) (domain.ControlResult, error) {
	p.ctrl.Lock()
	defer p.ctrl.Unlock()

	p.mu.RLock()
	var job domain.Job
	processing := p.state.processing
	if processing {
		job = *p.state.current
	}
	p.mu.RUnlock()
	if !processing {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, nil
	}

	res, err := p.procs.Terminate(ctx, p.opts.TerminateGrace)
	switch {
	case errors.Is(err, domain.ErrNoActiveJob):
		// nothing of the job was left running, the job is cancelled all the same
		res = domain.ControlResult{Outcome: domain.OutcomeOK}
	case err != nil:
		logger.Error.Printf("terminate %s: %v", logger.SanitizeForLog(job.Key()), err)
	}

	for _, path := range []string{job.InputPath, p.tempOutput(job.Key())} {
		if removeIfExists(path) {
			res.DeletedFiles = append(res.DeletedFiles, filepath.Base(path))
		}
	}

	p.mu.Lock()
	p.gen++
	p.state.clear(msgTerminated)
	p.state.pending = without(p.state.pending, job.Key())
	p.mu.Unlock()

	logger.Info.Printf("terminated %s: %s (affected=%d failed=%d)", logger.SanitizeForLog(job.Key()), res.Outcome, res.Affected, res.Failed)
	p.checkpoint()
	p.notify()
	return res, nil
}

// notify wakes the worker without blocking.
func (p *Pipeline) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// checkpoint persists the current state and publishes it to subscribers.
// A failed write is logged; in-memory state stays authoritative.
func (p *Pipeline) checkpoint() {
	p.saveMu.Lock()
	p.mu.RLock()
	snap := p.state.snapshot(p.queue.jobs())
	status := p.state.status(p.queue.names())
	p.mu.RUnlock()

	if err := p.snapshots.Save(context.Background(), snap); err != nil {
		logger.Error.Printf("failed to save snapshot: %v", err)
	}
	p.saveMu.Unlock()

	if p.events != nil {
		p.events.Publish(status)
	}
}

// removeIfExists deletes path and reports whether a file was removed.
func removeIfExists(path string) bool {
	if path == "" {
		return false
	}
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Warn.Printf("failed to remove %s: %v", logger.SanitizeForLog(path), err)
	}
	return false
}
