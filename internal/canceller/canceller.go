// Package canceller implements cancellation requests: setting the
// filesystem flag every worker polls lock-free, and flipping
// ClusterState.canceled under the cluster lock (spec §4.3, §4.6, §9).
package canceller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/model"
)

// Canceller requests cancellation of a running JADE invocation.
type Canceller struct {
	store       *clusterstore.Store
	adapter     hpcadapter.Adapter
	jobPrefix   string
	lockTimeout time.Duration
	log         zerolog.Logger
}

// New returns a Canceller bound to store and adapter. adapter is used to
// cancel batches already submitted to the scheduler but not yet finalized
// (spec §5: "batches already submitted to HPC but not yet started on a
// node must be cancelled through HpcAdapter.cancel(hpc_job_id)"). jobPrefix
// scopes the ListActiveIDs sweep (spec §2's list_active_ids(prefix)) to this
// run's own jobs; pass "" if unknown.
func New(store *clusterstore.Store, adapter hpcadapter.Adapter, jobPrefix string, log zerolog.Logger) *Canceller {
	return &Canceller{
		store:       store,
		adapter:     adapter,
		jobPrefix:   jobPrefix,
		lockTimeout: 10 * time.Minute,
		log:         log.With().Str("component", "canceller").Logger(),
	}
}

// Cancel sets the cancellation flag (observable lock-free by every
// in-flight worker), asks the scheduler to cancel every still-active HPC
// job, and, once the cluster lock is available, flips ClusterState.canceled
// so the next SubmitterLoop iteration stops forming new batches.
func (c *Canceller) Cancel(ctx context.Context) error {
	if err := c.store.SetCancelled(); err != nil {
		return fmt.Errorf("canceller: setting cancellation flag: %w", err)
	}
	c.log.Info().Msg("cancellation flag set")

	if err := c.store.Acquire(ctx, c.lockTimeout); err != nil {
		return fmt.Errorf("canceller: acquiring cluster lock to mark state canceled: %w", err)
	}
	defer c.store.Release()

	state, err := c.store.Read()
	if err != nil {
		return fmt.Errorf("canceller: reading cluster state: %w", err)
	}
	if state == nil {
		return nil
	}

	c.cancelActiveBatches(ctx, state)

	state.Canceled = true
	if err := c.store.Write(state); err != nil {
		return fmt.Errorf("canceller: writing cluster state: %w", err)
	}
	return nil
}

// cancelActiveBatches asks the scheduler to cancel every batch not yet
// finalized. Failures are logged, not fatal: a batch the scheduler can't
// reach is still marked canceled in ClusterState so SubmitterLoop stops
// waiting on it. It then sweeps ListActiveIDs(jobPrefix) for any of this
// run's jobs the scheduler still considers live but that ClusterState never
// recorded (e.g. a crash between Submit and the state write landing), and
// cancels those too.
func (c *Canceller) cancelActiveBatches(ctx context.Context, state *model.ClusterState) {
	if c.adapter == nil {
		return
	}
	tracked := make(map[string]bool, len(state.ActiveBatches))
	for batchID, ab := range state.ActiveBatches {
		if ab.HPCJobID != "" {
			tracked[ab.HPCJobID] = true
		}
		if ab.State == model.BatchFinalized || ab.HPCJobID == "" {
			continue
		}
		if err := c.adapter.Cancel(ctx, ab.HPCJobID); err != nil {
			c.log.Warn().Err(err).Int("batch_id", batchID).Str("hpc_job_id", ab.HPCJobID).Msg("failed to cancel hpc job")
		}
	}

	active, err := c.adapter.ListActiveIDs(ctx, c.jobPrefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to list active hpc jobs for cancellation sweep")
		return
	}
	for _, id := range active {
		if tracked[id] {
			continue
		}
		if err := c.adapter.Cancel(ctx, id); err != nil {
			c.log.Warn().Err(err).Str("hpc_job_id", id).Msg("failed to cancel untracked hpc job")
		}
	}
}
