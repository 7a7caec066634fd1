package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/transq/internal/adapter/storage/jsonfile"
	"github.com/bnema/transq/internal/domain"
)

func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transq.toml")
	content := fmt.Sprintf("data_dir = %q\nstate_backend = \"json\"\n", dataDir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, nil)
	assert.Equal(t, "No saved state yet.\n", buf.String())
}

func TestRenderStatus(t *testing.T) {
	current := domain.Job{OriginalName: "a.mp4", StoredName: "upload_1_aaaa.mp4", EnqueuedAt: time.Now().Add(-time.Minute)}
	snap := &domain.Snapshot{
		Queue:      []domain.Job{{OriginalName: "b.mkv", StoredName: "upload_2_bbbb.mkv", AdditionalArgs: "--half-sbs"}},
		Pending:    []string{"b.mkv"},
		Completed:  []string{"old.mp4"},
		Processing: true,
		CurrentJob: &current,
		Message:    "converting a.mp4",
		SavedAt:    time.Now(),
	}

	var buf bytes.Buffer
	renderStatus(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "Status:    converting a.mp4")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "upload_2_bbbb.mkv")
	assert.Contains(t, out, "--half-sbs")
	assert.Contains(t, out, "1 minute ago")
	assert.Contains(t, out, "Completed: old.mp4")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a.mp4")), bytes.Index(buf.Bytes(), []byte("b.mkv")))
}

func TestStatusCommand(t *testing.T) {
	t.Setenv("TRANSQ_CONFIG", "")
	dataDir := t.TempDir()
	store, err := jsonfile.NewStore(dataDir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), &domain.Snapshot{
		Version: domain.SnapshotVersion,
		Queue:   []domain.Job{{OriginalName: "queued.mp4", InputPath: "/x", StoredName: "upload_x.mp4"}},
		Message: "idle",
	}))

	out, err := runCLI(t, "status", "--config", writeConfig(t, dataDir))
	require.NoError(t, err)
	assert.Contains(t, out, "queued.mp4")
	assert.Contains(t, out, "Status:    idle")

	out, err = runCLI(t, "status", "--json", "-c", writeConfig(t, dataDir))
	require.NoError(t, err)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "queued.mp4", snap.Queue[0].OriginalName)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "transq dev\n", out)
}
