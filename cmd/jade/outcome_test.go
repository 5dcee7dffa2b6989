package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/model"
	"github.com/jade-hpc/jade/internal/submitloop"
)

func TestInterpretOutcome_CanceledTakesPriority(t *testing.T) {
	err := interpretOutcome(submitloop.Outcome{Canceled: true, Complete: true}, &model.ClusterState{})
	require.ErrorIs(t, err, errCanceled)
}

func TestInterpretOutcome_IncompleteIsSuccess(t *testing.T) {
	err := interpretOutcome(submitloop.Outcome{Complete: false}, &model.ClusterState{})
	require.NoError(t, err)
}

func TestInterpretOutcome_CompleteWithFailureExitsJobsFailed(t *testing.T) {
	state := &model.ClusterState{CompletedResults: []model.JobResult{
		{JobID: 1, Status: model.StatusFinished, ReturnCode: 0},
		{JobID: 2, Status: model.StatusFinished, ReturnCode: 1},
	}}
	err := interpretOutcome(submitloop.Outcome{Complete: true}, state)
	require.ErrorIs(t, err, errJobsFailed)
}

func TestInterpretOutcome_CompleteAllSucceeded(t *testing.T) {
	state := &model.ClusterState{CompletedResults: []model.JobResult{
		{JobID: 1, Status: model.StatusFinished, ReturnCode: 0},
	}}
	err := interpretOutcome(submitloop.Outcome{Complete: true}, state)
	require.NoError(t, err)
}

func TestExitCodeFor_MapsEachSentinel(t *testing.T) {
	require.Equal(t, 0, exitCodeFor(nil))
	require.Equal(t, 1, exitCodeFor(errJobsFailed))
	require.Equal(t, 3, exitCodeFor(errCanceled))
	require.Equal(t, 2, exitCodeFor(require.AnError))
}
