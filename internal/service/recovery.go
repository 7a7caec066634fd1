package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
)

const uploadSessionPrefix = "_upload_"

type RecoveryReport struct {
	Restored  int
	Resumed   string
	Dropped   []string
	Orphans   []string
	Completed int
	Backlog   []string
}

// Recover rebuilds the queue and display lists from the last snapshot and the
// working directories. It must run once, before Run.
func (p *Pipeline) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	for _, dir := range []string{p.opts.UploadDir, p.opts.ConvertedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, err
		}
	}

	snap, err := p.snapshots.Load(ctx)
	if err != nil {
		logger.Error.Printf("recovery: snapshot unreadable, starting empty: %v", err)
		snap = nil
	}

	var (
		queue    jobQueue
		owned    []string
		dropped  []string
		inputs   = map[string]bool{}
		resuming = snap != nil && snap.Processing && snap.CurrentJob != nil
	)
	for i, job := range snap.Resumable() {
		if queue.contains(job.Key()) {
			continue
		}
		if _, err := os.Stat(job.InputPath); err != nil {
			logger.Warn.Printf("recovery: dropping %s, input %s is gone", logger.SanitizeForLog(job.Key()), logger.SanitizeForLog(job.InputPath))
			dropped = append(dropped, job.Key())
			continue
		}
		if i == 0 && resuming {
			report.Resumed = job.Key()
			logger.Info.Printf("recovery: resuming interrupted job %s", logger.SanitizeForLog(job.Key()))
		}
		queue.push(job)
		owned = append(owned, job.Key())
		inputs[filepath.Base(job.InputPath)] = true
	}
	report.Restored = queue.len()
	report.Dropped = dropped

	var pending []string
	if snap != nil {
		pending = without(snap.Pending, append(owned, dropped...)...)
	}

	report.Orphans = p.removeOrphans(inputs)

	completed, backlog := p.reconcileCompleted(ctx, snap)
	report.Completed = len(completed)
	report.Backlog = backlog

	p.mu.Lock()
	p.queue = queue
	p.state = pipelineState{
		message:   msgIdle,
		pending:   pending,
		completed: completed,
	}
	p.mu.Unlock()
	p.backlog = backlog

	p.checkpoint()
	logger.Info.Printf("recovery: %d queued, %d dropped, %d orphans removed, %d completed, %d to publish",
		report.Restored, len(report.Dropped), len(report.Orphans), report.Completed, len(report.Backlog))
	return report, nil
}

// removeOrphans deletes leftovers of interrupted uploads and conversions:
// upload files no recovered job refers to, chunked upload session
// directories, and temporary outputs.
func (p *Pipeline) removeOrphans(inputs map[string]bool) []string {
	var removed []string

	entries, err := os.ReadDir(p.opts.UploadDir)
	if err != nil {
		logger.Warn.Printf("recovery: read upload dir: %v", err)
	}
	for _, e := range entries {
		path := filepath.Join(p.opts.UploadDir, e.Name())
		switch {
		case e.IsDir() && strings.HasPrefix(e.Name(), uploadSessionPrefix):
			if err := os.RemoveAll(path); err != nil {
				logger.Warn.Printf("recovery: remove %s: %v", logger.SanitizeForLog(path), err)
				continue
			}
		case e.IsDir():
			continue
		case inputs[e.Name()]:
			continue
		default:
			if !removeIfExists(path) {
				continue
			}
		}
		removed = append(removed, e.Name())
	}

	entries, err = os.ReadDir(p.opts.ConvertedDir)
	if err != nil {
		logger.Warn.Printf("recovery: read converted dir: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		if removeIfExists(filepath.Join(p.opts.ConvertedDir, e.Name())) {
			removed = append(removed, e.Name())
		}
	}

	for _, name := range removed {
		logger.Info.Printf("recovery: removed orphan %s", logger.SanitizeForLog(name))
	}
	return removed
}

// reconcileCompleted lists the authoritative store, newest first. In remote
// mode, outputs still sitting in the local directory are returned as backlog
// to publish. The snapshot list is only used when the store cannot be listed.
func (p *Pipeline) reconcileCompleted(ctx context.Context, snap *domain.Snapshot) ([]string, []string) {
	objects, err := p.authority().List(ctx)
	if err != nil {
		logger.Warn.Printf("recovery: list completed outputs, keeping snapshot list: %v", err)
		if snap == nil {
			return nil, nil
		}
		return slices.Clone(snap.Completed), p.localBacklog(ctx, nil)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Modified.After(objects[j].Modified)
	})
	completed := make([]string, 0, len(objects))
	published := make(map[string]int64, len(objects))
	for _, obj := range objects {
		completed = append(completed, obj.Name)
		published[obj.Name] = obj.Size
	}
	return completed, p.localBacklog(ctx, published)
}

func (p *Pipeline) localBacklog(ctx context.Context, published map[string]int64) []string {
	if p.remote == nil {
		return nil
	}
	local, err := p.outputs.List(ctx)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn.Printf("recovery: list local outputs: %v", err)
		}
		return nil
	}

	var backlog []string
	for _, obj := range local {
		if size, ok := published[obj.Name]; ok && size == obj.Size {
			// uploaded before the crash, the local removal did not happen
			removeIfExists(p.finalOutput(obj.Name))
			continue
		}
		backlog = append(backlog, obj.Name)
	}
	return backlog
}
