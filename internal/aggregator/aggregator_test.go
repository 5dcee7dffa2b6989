package aggregator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/model"
)

func testConfig() *model.Configuration {
	return &model.Configuration{
		Jobs: []model.Job{
			{ID: 1, Name: "a", Command: "true"},
			{ID: 2, Name: "b", Command: "true", BlockedBy: []int{1}},
			{ID: 3, Name: "c", Command: "true", BlockedBy: []int{2}},
		},
		SubmissionGroups: []model.SubmissionGroup{{Name: "default", MaxNodes: 1}},
	}
}

func TestFinalize_WritesResultsErrorsAndStats(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	a := New(cfg, dir, zerolog.Nop())

	state := model.NewClusterState("cfg")
	state.AppendResult(model.JobResult{JobID: 1, Name: "a", Status: model.StatusFinished, ReturnCode: 0})
	state.AppendResult(model.JobResult{JobID: 2, Name: "b", Status: model.StatusFinished, ReturnCode: 1})
	state.AppendResult(model.JobResult{JobID: 3, Name: "c", Status: model.StatusMissing, ReturnCode: -1})

	require.NoError(t, a.Finalize(state))

	results, err := os.ReadFile(filepath.Join(dir, "results.txt"))
	require.NoError(t, err)
	require.Contains(t, string(results), "a")
	require.Contains(t, string(results), "b")

	errs, err := os.ReadFile(filepath.Join(dir, "errors.txt"))
	require.NoError(t, err)
	require.Contains(t, string(errs), "job=b")
	require.Contains(t, string(errs), "job=c")
	require.NotContains(t, string(errs), "job=a")

	_, err = os.Stat(filepath.Join(dir, "stats_summary.json"))
	require.NoError(t, err)
}

func TestResubmit_SelectsFailedAndCarriesForwardSuccess(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	a := New(cfg, dir, zerolog.Nop())

	state := model.NewClusterState("cfg")
	state.AppendResult(model.JobResult{JobID: 1, Name: "a", Status: model.StatusFinished, ReturnCode: 0})
	state.AppendResult(model.JobResult{JobID: 2, Name: "b", Status: model.StatusFinished, ReturnCode: 1})
	state.AppendResult(model.JobResult{JobID: 3, Name: "c", Status: model.StatusMissing, ReturnCode: -1})

	reduced, newState, err := a.Resubmit(state, true, true)
	require.NoError(t, err)
	require.Len(t, reduced.Jobs, 2)

	ids := map[int]bool{}
	for _, j := range reduced.Jobs {
		ids[j.ID] = true
	}
	require.True(t, ids[2])
	require.True(t, ids[3])

	// job 1's successful result must be carried forward since job 2 depends on it.
	require.True(t, newState.HasResult(1))
	require.False(t, newState.HasResult(2))
}

func TestResubmit_ErrorsWhenNothingMatches(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	a := New(cfg, dir, zerolog.Nop())

	state := model.NewClusterState("cfg")
	state.AppendResult(model.JobResult{JobID: 1, Status: model.StatusFinished, ReturnCode: 0})

	_, _, err := a.Resubmit(state, true, true)
	require.Error(t, err)
}
