package main

import (
	"github.com/jade-hpc/jade/internal/model"
	"github.com/jade-hpc/jade/internal/submitloop"
)

// interpretOutcome maps a SubmitterLoop iteration's result to the CLI exit
// code contract (spec.md §6): canceled runs exit 3; a complete run with any
// non-success terminal result exits 1; anything else (still running, or
// submitted but not yet complete) exits 0.
func interpretOutcome(outcome submitloop.Outcome, state *model.ClusterState) error {
	if outcome.Canceled {
		return errCanceled
	}
	if !outcome.Complete || state == nil {
		return nil
	}
	for _, r := range state.CompletedResults {
		if r.Status != model.StatusFinished || r.ReturnCode != 0 {
			return errJobsFailed
		}
	}
	return nil
}
