package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteReplacesOutputAndRemovesStaging(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	fm := NewFileManager(out, "run-1")
	require.NoError(t, fm.EnsureDirectories())

	require.NoError(t, os.WriteFile(fm.OutputPath("a.csv"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(fm.StagingPath("a.csv"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(fm.StagingPath("b.txt"), []byte("log"), 0o644))

	promoted, err := fm.Promote([]string{"a.csv", "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{fm.OutputPath("a.csv"), fm.OutputPath("b.txt")}, promoted)

	data, err := os.ReadFile(fm.OutputPath("a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoDirExists(t, fm.StagingDir)
}

func TestPromoteRefusesIncompleteStaging(t *testing.T) {
	out := t.TempDir()
	fm := NewFileManager(out, "run-2")
	require.NoError(t, fm.EnsureDirectories())
	require.NoError(t, os.WriteFile(fm.OutputPath("a.csv"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(fm.StagingPath("a.csv"), []byte("new"), 0o644))

	_, err := fm.Promote([]string{"a.csv", "missing.csv"})
	require.Error(t, err)

	data, err := os.ReadFile(fm.OutputPath("a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestDiscard(t *testing.T) {
	fm := NewFileManager(t.TempDir(), "run-3")
	require.NoError(t, fm.EnsureDirectories())
	require.NoError(t, os.WriteFile(fm.StagingPath("x"), nil, 0o644))

	require.NoError(t, fm.Discard())
	assert.NoDirExists(t, fm.StagingDir)
	assert.DirExists(t, fm.OutputDir)
}

func TestWriteErrorLogAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_error.txt")

	require.NoError(t, WriteErrorLog(ErrorLogEntry{
		Timestamp: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		RunID:     "run-4",
		ErrorType: "ReconciliationError",
		Message:   "reconciliation failed",
	}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run-4")
	assert.Contains(t, string(data), "ReconciliationError")
	assert.Contains(t, string(data), "2025-05-01 12:00:00")

	require.NoError(t, RemoveIfExists(path))
	assert.False(t, FileExists(path))
	require.NoError(t, RemoveIfExists(path))
}

func TestCloseFileReportsCloseError(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	var closeErr error
	CloseFile(file, &closeErr)
	require.Error(t, closeErr)
	assert.Contains(t, closeErr.Error(), "failed to close")
	assert.True(t, errors.Is(closeErr, os.ErrClosed))
}

func TestCloseFileKeepsEarlierError(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	earlier := errors.New("write failed")
	got := earlier
	CloseFile(file, &got)
	assert.Same(t, earlier, got)
}
