package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snekrl/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainResumeEvalDebug(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "q.parquet")

	out, err := execute(t, "train", "--episodes", "30", "--width", "6", "--height", "6", "--output", model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "episodes 0..30")

	cp, err := store.Load(model, store.LoadOptions{Width: 6, Height: 6})
	require.NoError(t, err)
	assert.Equal(t, 30, cp.EpisodesTrained)
	assert.Positive(t, cp.Table.Len())

	out, err = execute(t, "train", "--resume", "--episodes", "40", "--width", "6", "--height", "6", "--output", model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "episodes 30..40")

	out, err = execute(t, "eval", "--model", model, "--episodes", "5", "--width", "6", "--height", "6")
	require.NoError(t, err, out)
	assert.Contains(t, out, "hybrid")

	traces := filepath.Join(dir, "traces")
	out, err = execute(t, "debug", "--model", model, "--width", "6", "--height", "6", "--out-dir", traces)
	require.NoError(t, err, out)
	assert.Contains(t, out, "=== step 0")
	assert.Contains(t, out, "episode over")

	entries, err := os.ReadDir(traces)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	rows, err := store.ReadTrace(filepath.Join(traces, entries[0].Name()))
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestResumeMissingCheckpointFails(t *testing.T) {
	model := filepath.Join(t.TempDir(), "missing.parquet")
	_, err := execute(t, "train", "--resume", "--episodes", "5", "--output", model)
	require.ErrorIs(t, err, store.ErrNotFound)

	out, err := execute(t, "train", "--resume", "--fresh", "--episodes", "5", "--width", "6", "--height", "6", "--output", model)
	require.NoError(t, err, out)
	assert.FileExists(t, model)
}

func TestEvalRejectsShapeMismatch(t *testing.T) {
	model := filepath.Join(t.TempDir(), "q.json")
	_, err := execute(t, "train", "--episodes", "3", "--width", "6", "--height", "6", "--output", model)
	require.NoError(t, err)

	_, err = execute(t, "eval", "--model", model, "--width", "8", "--height", "8")
	require.ErrorIs(t, err, store.ErrShapeMismatch)
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config", "--width", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "width: 9")
	assert.Contains(t, out, "alpha: 0.1")
}
