package clusterstore

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/model"
)

func writeResultCSV(t *testing.T, dir, name string, rows [][]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(model.ResultCSVHeader))
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

func TestStore_DrainResultFilesMissingDirIsNotError(t *testing.T) {
	t.Parallel()
	s := New(t.TempDir(), zerolog.Nop())

	results, err := s.DrainResultFiles()
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestStore_DrainResultFilesParsesAndDeletes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())

	completion := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	writeResultCSV(t, filepath.Join(dir, resultsDir), "results_batch_1.csv", [][]string{
		{"job-a", "1", "0", "finished", "12.5", completion, "1", "hpc-42", "/out/1"},
		{"job-b", "2", "1", "finished", "3.25", completion, "1", "hpc-42", "/out/2"},
	})

	results, err := s.DrainResultFiles()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "job-a", results[0].Name)
	require.Equal(t, 1, results[0].JobID)
	require.Equal(t, 0, results[0].ReturnCode)
	require.Equal(t, model.StatusFinished, results[0].Status)
	require.Equal(t, 12.5, results[0].ExecTimeSeconds)
	require.Equal(t, "hpc-42", results[0].HPCJobID)

	_, err = os.Stat(filepath.Join(dir, resultsDir, "results_batch_1.csv"))
	require.True(t, os.IsNotExist(err), "source CSV should be removed after drain")
}

func TestStore_DrainResultFilesCombinesMultipleBatches(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	completion := time.Now().UTC().Format(time.RFC3339Nano)

	writeResultCSV(t, filepath.Join(dir, resultsDir), "results_batch_1.csv", [][]string{
		{"job-a", "1", "0", "finished", "1.0", completion, "1", "hpc-1", "/out/1"},
	})
	writeResultCSV(t, filepath.Join(dir, resultsDir), "results_batch_2.csv", [][]string{
		{"job-b", "2", "0", "finished", "2.0", completion, "2", "hpc-2", "/out/2"},
	})

	results, err := s.DrainResultFiles()
	require.NoError(t, err)
	require.Len(t, results, 2)
}
