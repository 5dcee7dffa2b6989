package hpcadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/model"
)

func TestFakeAdapter_SubmitAndStatusTransitionsToComplete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))

	a := NewFakeAdapter(zerolog.Nop())
	spec := model.BatchSpec{BatchID: 1, JobIDs: []int{1}, SubmissionGroup: "default"}
	group := model.SubmissionGroup{Name: "default"}

	scriptPath, err := a.RenderSubmitScript(spec, group, dir, false)
	require.NoError(t, err)

	// Replace the rendered script with something that exits immediately,
	// since the real jade CLI isn't present in this test environment.
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/bash\nexit 0\n"), 0o755))

	ctx := context.Background()
	id, err := a.Submit(ctx, scriptPath)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		status, err := a.Status(ctx, id)
		return err == nil && status == StatusComplete
	}, time.Second, 10*time.Millisecond)
}

func TestFakeAdapter_StatusUnknownForUnsubmittedID(t *testing.T) {
	t.Parallel()
	a := NewFakeAdapter(zerolog.Nop())
	status, err := a.Status(context.Background(), "never-submitted")
	require.NoError(t, err)
	require.Equal(t, StatusUnknown, status)
}

func TestFakeAdapter_ListActiveIDsExcludesCompleted(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	a := NewFakeAdapter(zerolog.Nop())

	scriptPath := filepath.Join(dir, "configs", "quick.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/bash\nexit 0\n"), 0o755))

	ctx := context.Background()
	id, err := a.Submit(ctx, scriptPath)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, _ := a.Status(ctx, id)
		return status == StatusComplete
	}, time.Second, 10*time.Millisecond)

	ids, err := a.ListActiveIDs(ctx, "")
	require.NoError(t, err)
	require.NotContains(t, ids, id)
}
