package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/transq/internal/adapter/contentstore/local"
	"github.com/bnema/transq/internal/domain"
)

// fakeProcs stands in for the process tree controller. Spawned runs stay
// alive until the test calls exit or Terminate is invoked.
type fakeProcs struct {
	mu       sync.Mutex
	nextPID  int
	cur      *fakeRun
	runs     map[int]*fakeRun
	spawnErr error

	started chan domain.CommandSpec

	suspended  int
	resumed    int
	terminated int
}

type fakeRun struct {
	handle domain.ProcessHandle
	spec   domain.CommandSpec
	done   chan struct{}
	code   int
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{
		nextPID: 1000,
		runs:    make(map[int]*fakeRun),
		started: make(chan domain.CommandSpec, 64),
	}
}

func (f *fakeProcs) Spawn(ctx context.Context, spec domain.CommandSpec) (domain.ProcessHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.spawnErr != nil {
		return domain.ProcessHandle{}, f.spawnErr
	}
	if f.cur != nil {
		return domain.ProcessHandle{}, errors.New("already running")
	}
	f.nextPID++
	r := &fakeRun{
		handle: domain.ProcessHandle{PID: f.nextPID, PGID: f.nextPID, State: domain.ProcessRunning, StartedAt: time.Now()},
		spec:   spec,
		done:   make(chan struct{}),
	}
	f.cur = r
	f.runs[r.handle.PID] = r
	f.started <- spec
	return r.handle, nil
}

func (f *fakeProcs) Wait(h domain.ProcessHandle) (int, error) {
	f.mu.Lock()
	r, ok := f.runs[h.PID]
	f.mu.Unlock()
	if !ok {
		return -1, domain.ErrNoActiveJob
	}
	<-r.done
	return r.code, nil
}

// exit ends the current run with code, optionally writing its output first.
func (f *fakeProcs) exit(t *testing.T, code int, writeOutput bool) {
	t.Helper()
	f.mu.Lock()
	r := f.cur
	f.cur = nil
	f.mu.Unlock()
	require.NotNil(t, r, "no running process")

	if writeOutput {
		require.NoError(t, os.WriteFile(outputOf(r.spec), []byte("converted"), 0644))
	}
	r.code = code
	close(r.done)
}

func (f *fakeProcs) Suspend(ctx context.Context) (domain.ControlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, domain.ErrNoActiveJob
	}
	f.suspended++
	return domain.ControlResult{Outcome: domain.OutcomeOK, Affected: 1}, nil
}

func (f *fakeProcs) Resume(ctx context.Context) (domain.ControlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, domain.ErrNoActiveJob
	}
	f.resumed++
	return domain.ControlResult{Outcome: domain.OutcomeOK, Affected: 1}, nil
}

func (f *fakeProcs) Terminate(ctx context.Context, grace time.Duration) (domain.ControlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return domain.ControlResult{Outcome: domain.OutcomeNoActiveJob}, domain.ErrNoActiveJob
	}
	r := f.cur
	f.cur = nil
	r.code = -1
	close(r.done)
	f.terminated++
	return domain.ControlResult{Outcome: domain.OutcomeOK, Affected: 1}, nil
}

func (f *fakeProcs) Current() (domain.ProcessHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return domain.ProcessHandle{}, false
	}
	return f.cur.handle, true
}

// fakeTransformer produces "transform <input> <output>".
type fakeTransformer struct{}

func (fakeTransformer) Command(job domain.Job, outputPath string) (domain.CommandSpec, error) {
	return domain.CommandSpec{Path: "transform", Args: []string{job.InputPath, outputPath}}, nil
}

func inputOf(spec domain.CommandSpec) string  { return spec.Args[0] }
func outputOf(spec domain.CommandSpec) string { return spec.Args[1] }

// memSnapshots keeps every saved snapshot.
type memSnapshots struct {
	mu    sync.Mutex
	saved []*domain.Snapshot
	load  *domain.Snapshot
	err   error
}

func (m *memSnapshots) Load(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.load != nil {
		return m.load, nil
	}
	if len(m.saved) == 0 {
		return nil, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memSnapshots) Save(ctx context.Context, s *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	m.load = nil
	return nil
}

func (m *memSnapshots) Close() error { return nil }

func (m *memSnapshots) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *memSnapshots) last() *domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

func (m *memSnapshots) all() []*domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Snapshot(nil), m.saved...)
}

// memStore is an in-memory remote content store.
type memStore struct {
	mu        sync.Mutex
	objects   map[string]domain.StoredObject
	failUntil int
	uploads   int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]domain.StoredObject)}
}

func (m *memStore) Upload(ctx context.Context, localPath, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.uploads <= m.failUntil {
		return errors.New("remote unavailable")
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	m.objects[name] = domain.StoredObject{Name: name, Size: info.Size(), Modified: time.Now()}
	return nil
}

func (m *memStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return domain.ErrNotFound
	}
	delete(m.objects, name)
	return nil
}

func (m *memStore) List(ctx context.Context) ([]domain.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoredObject, 0, len(m.objects))
	for _, o := range m.objects {
		out = append(out, o)
	}
	return out, nil
}

func (m *memStore) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}

type recordingEvents struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (r *recordingEvents) Publish(s domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

type testEnv struct {
	pipeline  *Pipeline
	procs     *fakeProcs
	snapshots *memSnapshots
	outputs   *local.Store
	uploadDir string
	convDir   string
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		procs:     newFakeProcs(),
		snapshots: &memSnapshots{},
		uploadDir: filepath.Join(root, "uploads"),
		convDir:   filepath.Join(root, "converted"),
	}
	require.NoError(t, os.MkdirAll(env.uploadDir, 0755))

	outputs, err := local.NewStore(env.convDir)
	require.NoError(t, err)
	env.outputs = outputs

	opts := Options{
		UploadDir:      env.uploadDir,
		ConvertedDir:   env.convDir,
		PollInterval:   time.Hour,
		TerminateGrace: time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	env.pipeline = NewPipeline(env.snapshots, env.procs, fakeTransformer{}, outputs, nil, opts)
	return env
}

// job creates an input file in the upload dir and returns a job for it.
func (e *testEnv) job(t *testing.T, name string) domain.Job {
	t.Helper()
	path := filepath.Join(e.uploadDir, "upload_"+name)
	require.NoError(t, os.WriteFile(path, []byte("input "+name), 0644))
	return domain.NewJob(path, name, "")
}

func (e *testEnv) submit(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, e.pipeline.Submit(e.job(t, n)))
	}
}

// run starts the worker loop and stops it when the test ends.
func (e *testEnv) run(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.pipeline.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func (e *testEnv) nextStarted(t *testing.T) domain.CommandSpec {
	t.Helper()
	select {
	case spec := <-e.procs.started:
		return spec
	case <-time.After(5 * time.Second):
		t.Fatal("no job started")
		return domain.CommandSpec{}
	}
}

func (e *testEnv) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !e.pipeline.Status().Processing
	}, 5*time.Second, 5*time.Millisecond)
}
