package submitloop

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/aggregator"
	"github.com/jade-hpc/jade/internal/batcher"
	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/metrics"
	"github.com/jade-hpc/jade/internal/model"
	"github.com/jade-hpc/jade/internal/submitter"
)

type fakeAdapter struct {
	status       hpcadapter.Status
	submitCalls  int
	statusCalls  int
	submittedIDs []string
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) RenderSubmitScript(spec model.BatchSpec, group model.SubmissionGroup, outputDir string, noDistributedSubmitter bool) (string, error) {
	return filepath.Join(outputDir, "script.sh"), nil
}

func (a *fakeAdapter) Submit(ctx context.Context, scriptPath string) (string, error) {
	a.submitCalls++
	id := "hpc-job-1"
	a.submittedIDs = append(a.submittedIDs, id)
	return id, nil
}

func (a *fakeAdapter) Status(ctx context.Context, hpcJobID string) (hpcadapter.Status, error) {
	a.statusCalls++
	return a.status, nil
}

func (a *fakeAdapter) Cancel(ctx context.Context, hpcJobID string) error { return nil }

func (a *fakeAdapter) ListActiveIDs(ctx context.Context, prefix string) ([]string, error) { return nil, nil }

func testLoopConfig() *model.Configuration {
	return &model.Configuration{
		Jobs: []model.Job{
			{ID: 1, Name: "a", Command: "true"},
			{ID: 2, Name: "b", Command: "true"},
		},
		SubmissionGroups: []model.SubmissionGroup{{Name: "default", MaxNodes: 5, PerNodeBatchSize: 2}},
	}
}

func newTestLoop(t *testing.T, cfg *model.Configuration, adapter hpcadapter.Adapter) (*Loop, *clusterstore.Store, string) {
	loop, store, dir, _ := newTestLoopWithMetrics(t, cfg, adapter)
	return loop, store, dir
}

func newTestLoopWithMetrics(t *testing.T, cfg *model.Configuration, adapter hpcadapter.Adapter) (*Loop, *clusterstore.Store, string, *metrics.Metrics) {
	t.Helper()
	dir := t.TempDir()
	store := clusterstore.New(dir, zerolog.Nop())
	b := batcher.New(cfg, zerolog.Nop())
	sub := submitter.New(cfg, adapter, dir, false, zerolog.Nop())
	agg := aggregator.New(cfg, dir, zerolog.Nop())
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	loop := New(cfg, store, b, sub, adapter, agg, m, zerolog.Nop())
	return loop, store, dir, m
}

func TestRunOnce_FreshStateSubmitsInitialBatches(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusRunning}
	loop, store, _ := newTestLoop(t, cfg, adapter)

	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, outcome.Complete)
	require.False(t, outcome.Canceled)
	require.Equal(t, 1, adapter.submitCalls)

	state, err := store.Read()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Len(t, state.ActiveBatches, 1)
}

func TestRunOnce_ReconcilesMissingResultsWhenBatchCompletesWithoutResultFiles(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusRunning}
	loop, store, _ := newTestLoop(t, cfg, adapter)

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)

	adapter.status = hpcadapter.StatusComplete
	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Complete)

	state, err := store.Read()
	require.NoError(t, err)
	for _, job := range cfg.Jobs {
		require.True(t, state.HasResult(job.ID))
	}
	result, ok := state.ResultByJobID()[1]
	require.True(t, ok)
	require.Equal(t, model.StatusMissing, result.Status)
}

func TestRunOnce_FinalizesOnceAndWritesAggregatorOutput(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusComplete}
	loop, store, dir := newTestLoop(t, cfg, adapter)

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Complete)

	_, err = os.Stat(filepath.Join(dir, "results.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "stats_summary.json"))
	require.NoError(t, err)

	state, err := store.Read()
	require.NoError(t, err)
	require.True(t, state.IsComplete)

	finalVersion := state.Version
	outcome, err = loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Complete)

	state, err = store.Read()
	require.NoError(t, err)
	require.Equal(t, finalVersion, state.Version, "a completed run must short-circuit before re-acquiring work")
}

func TestRunOnce_CancellationFlagStopsFurtherBatching(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusRunning}
	loop, store, _ := newTestLoop(t, cfg, adapter)

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, adapter.submitCalls)

	require.NoError(t, store.SetCancelled())

	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Canceled)
	require.Equal(t, 1, adapter.submitCalls, "no new batch should be submitted once canceled")

	state, err := store.Read()
	require.NoError(t, err)
	require.True(t, state.Canceled)
}

func TestRunOnce_PreExistingCancellationShortCircuitsImmediately(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusRunning}
	loop, store, _ := newTestLoop(t, cfg, adapter)

	state := model.NewClusterState("cfg-id")
	state.Canceled = true
	require.NoError(t, store.Write(state))

	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Canceled)
	require.Equal(t, 0, adapter.submitCalls)
	require.Equal(t, 0, adapter.statusCalls)
}

func TestRunOnce_RecordsMetricsForSubmissionAndCompletion(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusRunning}
	loop, _, _, m := newTestLoopWithMetrics(t, cfg, adapter)

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(1), readCounter(t, m.BatchesSubmittedTotal))
	require.Equal(t, float64(1), readGauge(t, m.ActiveBatches))

	adapter.status = hpcadapter.StatusComplete
	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Complete)
	require.Equal(t, float64(0), readGauge(t, m.ActiveBatches), "finalized batch should decrement the active gauge")
	require.Equal(t, float64(2), readCounter(t, m.JobsCompletedTotal.WithLabelValues(string(model.StatusMissing))))
}

func readCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb io_prometheus_client.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func readGauge(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var pb io_prometheus_client.Metric
	require.NoError(t, g.Write(&pb))
	return pb.GetGauge().GetValue()
}

func TestRunForever_StopsWhenComplete(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusComplete}
	loop, _, _ := newTestLoop(t, cfg, adapter)

	outcome, err := loop.RunForever(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, outcome.Complete)
}

func TestRunForever_StopsWhenContextCanceled(t *testing.T) {
	cfg := testLoopConfig()
	adapter := &fakeAdapter{status: hpcadapter.StatusRunning}
	loop, _, _ := newTestLoop(t, cfg, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.RunOnce(context.Background())
	require.NoError(t, err)

	outcome, err := loop.RunForever(ctx, 0)
	require.Error(t, err)
	require.False(t, outcome.Complete)
}
