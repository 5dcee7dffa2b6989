package submitter

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/model"
)

type stubAdapter struct {
	failCount   int
	submitCalls int
	scriptPath  string
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) RenderSubmitScript(spec model.BatchSpec, group model.SubmissionGroup, outputDir string, noDistributedSubmitter bool) (string, error) {
	s.scriptPath = filepath.Join(outputDir, "script.sh")
	return s.scriptPath, nil
}

func (s *stubAdapter) Submit(ctx context.Context, scriptPath string) (string, error) {
	s.submitCalls++
	if s.submitCalls <= s.failCount {
		return "", errors.New("transient submit failure")
	}
	return "hpc-job-1", nil
}

func (s *stubAdapter) Status(ctx context.Context, hpcJobID string) (hpcadapter.Status, error) {
	return hpcadapter.StatusComplete, nil
}
func (s *stubAdapter) Cancel(ctx context.Context, hpcJobID string) error { return nil }
func (s *stubAdapter) ListActiveIDs(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func testConfig() *model.Configuration {
	return &model.Configuration{
		Jobs: []model.Job{
			{ID: 1, Name: "a", Command: "true"},
			{ID: 2, Name: "b", Command: "true"},
		},
		SubmissionGroups: []model.SubmissionGroup{{Name: "default", MaxNodes: 5}},
	}
}

func TestSubmitBatch_WritesFilteredConfigAndRecordsState(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	adapter := &stubAdapter{}
	sub := New(cfg, adapter, dir, false, zerolog.Nop())

	spec := model.BatchSpec{BatchID: 1, JobIDs: []int{1}, SubmissionGroup: "default"}
	state := model.NewClusterState("cfg-id")

	require.NoError(t, sub.SubmitBatch(context.Background(), spec, cfg.SubmissionGroups[0], state))

	raw, err := os.ReadFile(filepath.Join(dir, "configs", "config_batch_1.json"))
	require.NoError(t, err)
	var filtered model.Configuration
	require.NoError(t, json.Unmarshal(raw, &filtered))
	require.Len(t, filtered.Jobs, 1)
	require.Equal(t, 1, filtered.Jobs[0].ID)

	require.True(t, state.IsSubmitted(1))
	require.Equal(t, "hpc-job-1", state.ActiveBatches[1].HPCJobID)
	require.Equal(t, model.BatchSubmitted, state.ActiveBatches[1].State)
}

func TestSubmitBatch_RetriesOnTransientFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	adapter := &stubAdapter{failCount: 2}
	sub := New(cfg, adapter, dir, false, zerolog.Nop())
	sub.sleep = func(time.Duration) {}

	spec := model.BatchSpec{BatchID: 1, JobIDs: []int{1}, SubmissionGroup: "default"}
	state := model.NewClusterState("cfg-id")

	require.NoError(t, sub.SubmitBatch(context.Background(), spec, cfg.SubmissionGroups[0], state))
	require.Equal(t, 3, adapter.submitCalls)
}

func TestSubmitBatch_LeavesBatchUnsubmittedAfterExhaustedRetries(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	adapter := &stubAdapter{failCount: 99}
	sub := New(cfg, adapter, dir, false, zerolog.Nop())
	sub.sleep = func(time.Duration) {}

	spec := model.BatchSpec{BatchID: 1, JobIDs: []int{1}, SubmissionGroup: "default"}
	state := model.NewClusterState("cfg-id")

	err := sub.SubmitBatch(context.Background(), spec, cfg.SubmissionGroups[0], state)
	require.Error(t, err)
	require.False(t, state.IsSubmitted(1))
	require.Empty(t, state.ActiveBatches)
}
