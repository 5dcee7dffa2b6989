// Package batcher computes ready-to-run batches from a Configuration and a
// ClusterState snapshot (spec §4.1).
package batcher

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/model"
)

// safetyMargin is subtracted from a submission group's walltime before
// time-based packing, leaving headroom for node setup/teardown.
const safetyMargin = 5 * time.Minute

// Batcher computes BatchSpecs from ClusterState + Configuration snapshots.
type Batcher struct {
	cfg *model.Configuration
	log zerolog.Logger
}

// New returns a Batcher bound to cfg.
func New(cfg *model.Configuration, log zerolog.Logger) *Batcher {
	return &Batcher{
		cfg: cfg,
		log: log.With().Str("component", "batcher").Logger(),
	}
}

// Compute implements the per-group algorithm of spec §4.1: candidate
// resolution, best-effort blocker-failure propagation, and size- or
// time-based packing, in deterministic (alphabetical group, insertion order)
// sequence. It also returns any synthetic canceled JobResults produced by
// cascading cancel_on_blocking_job_failure propagation (I5), which the
// caller must append to ClusterState.CompletedResults before writing.
func (b *Batcher) Compute(state *model.ClusterState) ([]model.BatchSpec, []model.JobResult, error) {
	groups := append([]model.SubmissionGroup(nil), b.cfg.SubmissionGroups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	results := state.ResultByJobID()
	canceled := make([]model.JobResult, 0)
	var specs []model.BatchSpec

	for _, group := range groups {
		groupJobs := b.jobsInGroup(group.Name)
		cascaded := propagateCascade(groupJobs, results, canceled)
		canceled = append(canceled, cascaded...)
		for _, r := range cascaded {
			results[r.JobID] = r
		}

		candidates := candidatesFor(groupJobs, state, results)
		if len(candidates) == 0 {
			continue
		}

		// claimed tracks jobs placed into a batch earlier in this very
		// Compute() call, so backfillBlocked doesn't place the same job into
		// two batches of one invocation. It is deliberately NOT written into
		// state.SubmittedJobs here: that only happens once submitter.SubmitBatch
		// actually succeeds (internal/submitter/submitter.go), so a batch
		// that fails to submit leaves its jobs eligible for a retry on the
		// next SubmitterLoop iteration instead of stranding them.
		claimed := make(map[int]bool)

		availableNodes := group.MaxNodes - activeBatchCountForGroup(state, group.Name)
		for availableNodes > 0 && len(candidates) > 0 {
			var batchJobs []model.Job
			if group.TimeBasedBatching {
				batchJobs, candidates = packByTime(candidates, group)
			} else {
				size := group.PerNodeBatchSize
				if size <= 0 {
					size = 1
				}
				if size > len(candidates) {
					size = len(candidates)
				}
				batchJobs, candidates = candidates[:size], candidates[size:]
			}
			if group.TryAddBlockedJobs {
				batchJobs = b.backfillBlocked(batchJobs, groupJobs, state, results, claimed, group)
			}

			batchID := state.AllocateBatchID()
			ids := make([]int, len(batchJobs))
			for i, j := range batchJobs {
				ids[i] = j.ID
				claimed[j.ID] = true
			}
			specs = append(specs, model.BatchSpec{
				BatchID:         batchID,
				JobIDs:          ids,
				SubmissionGroup: group.Name,
			})
			availableNodes--
		}
	}

	return specs, canceled, nil
}

func (b *Batcher) jobsInGroup(name string) []model.Job {
	var jobs []model.Job
	for _, j := range b.cfg.Jobs {
		resolved := j.SubmissionGroup
		if resolved == "" && len(b.cfg.SubmissionGroups) == 1 {
			resolved = b.cfg.SubmissionGroups[0].Name
		}
		if resolved == name {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// propagateCascade walks groupJobs in insertion order, emitting synthetic
// canceled results for any job whose blocker failed and that opted into
// cancel_on_blocking_job_failure (I5), and transitively for jobs blocked on
// those synthetic cancellations.
func propagateCascade(groupJobs []model.Job, results map[int]model.JobResult, already []model.JobResult) []model.JobResult {
	seen := make(map[int]bool, len(already))
	for _, r := range already {
		seen[r.JobID] = true
	}

	var produced []model.JobResult
	changed := true
	for changed {
		changed = false
		for _, job := range groupJobs {
			if seen[job.ID] {
				continue
			}
			if _, ok := results[job.ID]; ok {
				continue
			}
			if !job.CancelOnBlockingJobFailure {
				continue
			}
			failed := false
			for _, blockerID := range job.BlockedBy {
				if r, ok := results[blockerID]; ok && (r.Status == model.StatusCanceled || r.ReturnCode != 0) {
					failed = true
					break
				}
			}
			if !failed {
				continue
			}
			r := model.JobResult{
				Name:           job.EffectiveName(),
				JobID:          job.ID,
				ReturnCode:     -1,
				Status:         model.StatusCanceled,
				CompletionTime: time.Now(),
			}
			results[job.ID] = r
			produced = append(produced, r)
			seen[job.ID] = true
			changed = true
		}
	}
	return produced
}

// candidatesFor computes jobs in a group not yet submitted, all of whose
// blockers are terminal. A blocker that failed without triggering
// cancellation is treated as satisfied — JADE's best-effort policy (spec
// §4.1 step 2, open question Q1: intentionally preserved, not "fixed").
func candidatesFor(groupJobs []model.Job, state *model.ClusterState, results map[int]model.JobResult) []model.Job {
	var out []model.Job
	for _, job := range groupJobs {
		if state.IsSubmitted(job.ID) {
			continue
		}
		if _, ok := results[job.ID]; ok {
			continue
		}
		ready := true
		for _, blockerID := range job.BlockedBy {
			if _, ok := results[blockerID]; !ok {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, job)
		}
	}
	return out
}

// packByTime greedily packs candidates (in order) into one batch whose
// summed estimated_run_minutes fits within walltime minus safetyMargin
// (spec §4.1, worked example §8.4). Jobs without an estimate are
// conservatively assumed to consume the whole walltime, each occupying its
// own batch.
//
// The threshold compares the raw, undivided cumulative sum against budget:
// num_parallel_processes_per_node describes the batch's expected parallel
// makespan for reporting purposes (sum / parallelism), but does not relax
// the packing threshold itself — §8.4's worked example (walltime 240,
// parallelism 2, jobs [10,10,30,200,240]) only packs to three batches when
// the raw sum is what's compared against budget.
func packByTime(candidates []model.Job, group model.SubmissionGroup) (batch, rest []model.Job) {
	walltime, err := parseWalltime(group.HPCConfig.Walltime)
	if err != nil || walltime <= safetyMargin {
		return candidates[:1], candidates[1:]
	}
	budget := walltime - safetyMargin

	var used time.Duration
	i := 0
	for ; i < len(candidates); i++ {
		job := candidates[i]
		var cost time.Duration
		if job.EstimatedRunMinutes != nil {
			cost = time.Duration(*job.EstimatedRunMinutes) * time.Minute
		} else {
			cost = budget
		}
		if i > 0 && used+cost > budget {
			break
		}
		used += cost
		if job.EstimatedRunMinutes == nil {
			i++
			break
		}
	}
	if i == 0 {
		i = 1
	}
	return candidates[:i], candidates[i:]
}

func parseWalltime(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty walltime")
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("parsing walltime %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// backfillBlocked appends jobs that are still blocked but whose blockers
// will resolve inside this batch, honoring try_add_blocked_jobs (spec §4.1
// step 3). The JobRunner resolves their readiness locally via a second pass.
func (b *Batcher) backfillBlocked(batch, groupJobs []model.Job, state *model.ClusterState, results map[int]model.JobResult, claimed map[int]bool, group model.SubmissionGroup) []model.Job {
	inBatch := make(map[int]bool, len(batch))
	for _, j := range batch {
		inBatch[j.ID] = true
	}

	limit := group.PerNodeBatchSize
	if limit <= 0 {
		limit = len(batch)
	}
	for _, job := range groupJobs {
		if len(batch) >= limit {
			break
		}
		if inBatch[job.ID] || claimed[job.ID] || state.IsSubmitted(job.ID) {
			continue
		}
		if _, ok := results[job.ID]; ok {
			continue
		}
		allKnown := true
		for _, blockerID := range job.BlockedBy {
			if !inBatch[blockerID] {
				if _, ok := results[blockerID]; !ok {
					allKnown = false
					break
				}
			}
		}
		if allKnown {
			batch = append(batch, job)
			inBatch[job.ID] = true
		}
	}
	return batch
}

func activeBatchCountForGroup(state *model.ClusterState, group string) int {
	n := 0
	for _, ab := range state.ActiveBatches {
		if ab.SubmissionGroup == group && ab.State != model.BatchFinalized {
			n++
		}
	}
	return n
}
