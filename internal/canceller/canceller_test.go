package canceller

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/model"
)

var errCancelFailed = errors.New("hpc: cancel failed")

type stubAdapter struct {
	canceledIDs []string
	failIDs     map[string]bool
	activeIDs   []string
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) RenderSubmitScript(model.BatchSpec, model.SubmissionGroup, string, bool) (string, error) {
	return "", nil
}

func (s *stubAdapter) Submit(context.Context, string) (string, error) { return "", nil }

func (s *stubAdapter) Status(context.Context, string) (hpcadapter.Status, error) {
	return hpcadapter.StatusRunning, nil
}

func (s *stubAdapter) Cancel(ctx context.Context, hpcJobID string) error {
	s.canceledIDs = append(s.canceledIDs, hpcJobID)
	if s.failIDs[hpcJobID] {
		return errCancelFailed
	}
	return nil
}

func (s *stubAdapter) ListActiveIDs(context.Context, string) ([]string, error) { return s.activeIDs, nil }

func TestCancel_SetsFlagAndClusterState(t *testing.T) {
	dir := t.TempDir()
	store := clusterstore.New(dir, zerolog.Nop())
	require.NoError(t, store.Write(model.NewClusterState("cfg")))

	c := New(store, &stubAdapter{}, "", zerolog.Nop())
	require.NoError(t, c.Cancel(context.Background()))

	require.True(t, store.IsCancelled())

	state, err := store.Read()
	require.NoError(t, err)
	require.True(t, state.Canceled)
}

func TestCancel_NoExistingStateStillSetsFlag(t *testing.T) {
	dir := t.TempDir()
	store := clusterstore.New(dir, zerolog.Nop())

	c := New(store, &stubAdapter{}, "", zerolog.Nop())
	require.NoError(t, c.Cancel(context.Background()))
	require.True(t, store.IsCancelled())
}

func TestCancel_CancelsEveryNonFinalizedActiveBatch(t *testing.T) {
	dir := t.TempDir()
	store := clusterstore.New(dir, zerolog.Nop())

	state := model.NewClusterState("cfg")
	state.ActiveBatches = map[int]model.ActiveBatch{
		1: {HPCJobID: "hpc-1", State: model.BatchSubmitted},
		2: {HPCJobID: "hpc-2", State: model.BatchRunning},
		3: {HPCJobID: "hpc-3", State: model.BatchFinalized},
		4: {HPCJobID: "", State: model.BatchFormed},
	}
	require.NoError(t, store.Write(state))

	adapter := &stubAdapter{}
	c := New(store, adapter, "", zerolog.Nop())
	require.NoError(t, c.Cancel(context.Background()))

	require.ElementsMatch(t, []string{"hpc-1", "hpc-2"}, adapter.canceledIDs)
}

func TestCancel_AdapterCancelFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	store := clusterstore.New(dir, zerolog.Nop())

	state := model.NewClusterState("cfg")
	state.ActiveBatches = map[int]model.ActiveBatch{
		1: {HPCJobID: "hpc-1", State: model.BatchSubmitted},
	}
	require.NoError(t, store.Write(state))

	adapter := &stubAdapter{failIDs: map[string]bool{"hpc-1": true}}
	c := New(store, adapter, "", zerolog.Nop())
	require.NoError(t, c.Cancel(context.Background()))

	reloaded, err := store.Read()
	require.NoError(t, err)
	require.True(t, reloaded.Canceled)
}

func TestCancel_SweepsUntrackedActiveJobsNotInClusterState(t *testing.T) {
	dir := t.TempDir()
	store := clusterstore.New(dir, zerolog.Nop())

	state := model.NewClusterState("cfg")
	state.ActiveBatches = map[int]model.ActiveBatch{
		1: {HPCJobID: "hpc-1", State: model.BatchSubmitted},
	}
	require.NoError(t, store.Write(state))

	adapter := &stubAdapter{activeIDs: []string{"hpc-1", "hpc-lost"}}
	c := New(store, adapter, "run-prefix-", zerolog.Nop())
	require.NoError(t, c.Cancel(context.Background()))

	require.ElementsMatch(t, []string{"hpc-1", "hpc-lost"}, adapter.canceledIDs, "a job the scheduler still sees but ClusterState never recorded must still be canceled")
}
