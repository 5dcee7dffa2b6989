// Package submitloop implements the distributed controller that the
// submit-jobs, try-submit and resubmit commands enter: acquire the cluster
// lock, drain results, recompute readiness, submit new batches, and finalize
// when complete (spec §4.4). A compute node enters it through the try-submit
// line its batch script runs after the JobRunner finishes; nothing enters it
// when a JobRunner starts.
//
// Election is implicit: whoever holds the cluster lock is the acting
// submitter for that iteration.
package submitloop

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/aggregator"
	"github.com/jade-hpc/jade/internal/batcher"
	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/metrics"
	"github.com/jade-hpc/jade/internal/model"
	"github.com/jade-hpc/jade/internal/submitter"
)

// defaultLockTimeout is the blocking-acquire deadline before logging and
// aborting (spec §4.4).
const defaultLockTimeout = 10 * time.Minute

// Loop runs one or many SubmitterLoop iterations.
type Loop struct {
	cfg         *model.Configuration
	store       *clusterstore.Store
	batcher     *batcher.Batcher
	submitter   *submitter.Submitter
	adapter     hpcadapter.Adapter
	aggregator  *aggregator.Aggregator
	metrics     *metrics.Metrics
	lockTimeout time.Duration
	log         zerolog.Logger
}

// New returns a Loop wiring together every SubmitterLoop collaborator. m may
// be nil, in which case metrics recording is skipped.
func New(
	cfg *model.Configuration,
	store *clusterstore.Store,
	b *batcher.Batcher,
	s *submitter.Submitter,
	adapter hpcadapter.Adapter,
	agg *aggregator.Aggregator,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Loop {
	return &Loop{
		cfg:         cfg,
		store:       store,
		batcher:     b,
		submitter:   s,
		adapter:     adapter,
		aggregator:  agg,
		metrics:     m,
		lockTimeout: defaultLockTimeout,
		log:         log.With().Str("component", "submitloop").Logger(),
	}
}

// Outcome reports what a single RunOnce iteration did, used by RunForever
// to decide whether to loop again and by the CLI to choose an exit code.
type Outcome struct {
	Complete bool
	Canceled bool
}

// RunOnce executes exactly one SubmitterLoop iteration (spec §4.4's
// pseudocode). It acquires the cluster lock for the duration of the
// iteration and always releases it before returning.
func (l *Loop) RunOnce(ctx context.Context) (Outcome, error) {
	if l.metrics != nil {
		start := time.Now()
		defer func() { l.metrics.SubmitterLoopDuration.Observe(time.Since(start).Seconds()) }()
	}

	lockWaitStart := time.Now()
	if err := l.store.Acquire(ctx, l.lockTimeout); err != nil {
		l.log.Error().Err(err).Msg("aborting iteration: could not acquire cluster lock")
		return Outcome{}, err
	}
	if l.metrics != nil {
		l.metrics.LockWaitSeconds.Observe(time.Since(lockWaitStart).Seconds())
	}
	defer func() {
		if err := l.store.Release(); err != nil {
			l.log.Error().Err(err).Msg("failed to release cluster lock")
		}
	}()

	state, err := l.store.Read()
	if err != nil {
		return Outcome{}, fmt.Errorf("submitloop: reading cluster state: %w", err)
	}
	if state == nil {
		configID, err := l.cfg.ConfigID()
		if err != nil {
			return Outcome{}, fmt.Errorf("submitloop: deriving config id: %w", err)
		}
		state = model.NewClusterState(configID)
	}

	if state.IsComplete || state.Canceled {
		return Outcome{Complete: state.IsComplete, Canceled: state.Canceled}, nil
	}

	drained, err := l.store.DrainResultFiles()
	if err != nil {
		return Outcome{}, fmt.Errorf("submitloop: draining result files: %w", err)
	}
	for _, r := range drained {
		if state.AppendResult(r) {
			l.recordJobCompleted(r)
		}
	}

	if err := l.reconcileActiveBatches(ctx, state); err != nil {
		return Outcome{}, fmt.Errorf("submitloop: reconciling active batches: %w", err)
	}

	if l.store.IsCancelled() {
		state.Canceled = true
	}

	if !state.Canceled {
		specs, canceled, err := l.batcher.Compute(state)
		if err != nil {
			return Outcome{}, fmt.Errorf("submitloop: computing batches: %w", err)
		}
		for _, r := range canceled {
			if state.AppendResult(r) {
				l.recordJobCompleted(r)
			}
		}
		groups := l.cfg.GroupByName()
		for _, spec := range specs {
			group := groups[spec.SubmissionGroup]
			if err := l.submitter.SubmitBatch(ctx, spec, group, state); err != nil {
				l.log.Warn().Err(err).Int("batch_id", spec.BatchID).Msg("batch submission failed, will retry next iteration")
				continue
			}
			if l.metrics != nil {
				l.metrics.RecordBatchSubmitted()
			}
		}
	}

	complete := l.isComplete(state)
	if complete && !state.IsComplete {
		state.IsComplete = true
		if err := l.aggregator.Finalize(state); err != nil {
			l.log.Error().Err(err).Msg("result aggregation failed")
		}
		if l.cfg.TeardownCommand != "" {
			if err := runTeardownCommand(ctx, l.cfg.TeardownCommand); err != nil {
				l.log.Warn().Err(err).Msg("run teardown command failed")
			}
		}
	}

	if err := l.store.Write(state); err != nil {
		return Outcome{}, fmt.Errorf("submitloop: writing cluster state: %w", err)
	}

	return Outcome{Complete: state.IsComplete, Canceled: state.Canceled}, nil
}

// RunForever calls RunOnce until the run completes, is canceled, or ctx is
// done, sleeping interval between iterations. No CLI command calls it:
// submit-jobs, try-submit and resubmit each run a single RunOnce.
func (l *Loop) RunForever(ctx context.Context, interval time.Duration) (Outcome, error) {
	for {
		outcome, err := l.RunOnce(ctx)
		if err != nil {
			return outcome, err
		}
		if outcome.Complete || outcome.Canceled {
			return outcome, nil
		}
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// reconcileActiveBatches asks the HpcAdapter for each active batch's
// status; batches it no longer considers running but whose jobs never
// produced a result are synthesized as "missing" (spec §4.4, §7).
func (l *Loop) reconcileActiveBatches(ctx context.Context, state *model.ClusterState) error {
	for batchID, ab := range state.ActiveBatches {
		if ab.State == model.BatchFinalized || ab.HPCJobID == "" {
			continue
		}
		status, err := l.adapter.Status(ctx, ab.HPCJobID)
		if err != nil {
			l.log.Warn().Err(err).Int("batch_id", batchID).Msg("failed to query hpc status")
			continue
		}
		if status != hpcadapter.StatusComplete {
			continue
		}
		for _, jobID := range ab.JobIDs {
			if !state.HasResult(jobID) {
				r := model.JobResult{
					JobID:          jobID,
					ReturnCode:     -1,
					Status:         model.StatusMissing,
					CompletionTime: timeNow(),
					BatchID:        batchID,
					HPCJobID:       ab.HPCJobID,
				}
				if state.AppendResult(r) {
					l.recordJobCompleted(r)
				}
			}
		}
		ab.State = model.BatchFinalized
		state.ActiveBatches[batchID] = ab
		if l.metrics != nil {
			l.metrics.RecordBatchFinalized()
		}
	}
	return nil
}

// recordJobCompleted is a nil-safe wrapper around Metrics.RecordJobCompleted.
func (l *Loop) recordJobCompleted(r model.JobResult) {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordJobCompleted(string(r.Status))
}

func (l *Loop) isComplete(state *model.ClusterState) bool {
	for _, job := range l.cfg.Jobs {
		if !state.HasResult(job.ID) {
			return false
		}
	}
	return true
}

var timeNow = func() time.Time { return time.Now() }
