// Package aggregator writes the canonical results output once a run
// completes and produces reduced configurations for resubmission (spec
// §4.5).
package aggregator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/model"
)

// Aggregator finalizes a completed run and supports resubmission of failed
// or missing jobs.
type Aggregator struct {
	cfg       *model.Configuration
	outputDir string
	log       zerolog.Logger
}

// New returns an Aggregator bound to cfg and outputDir.
func New(cfg *model.Configuration, outputDir string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:       cfg,
		outputDir: outputDir,
		log:       log.With().Str("component", "aggregator").Logger(),
	}
}

// statsSummary is the reconstructed shape of stats_summary.json: per-status
// counts and total execution time. The original resource sampler
// (CPU/memory time series per job) is an external collaborator out of
// scope here (spec §4.5).
type statsSummary struct {
	TotalJobs      int            `json:"total_jobs"`
	StatusCounts   map[string]int `json:"status_counts"`
	TotalExecTimeS float64        `json:"total_exec_time_s"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Finalize writes results.txt, errors.txt, and stats_summary.json from
// state.CompletedResults (spec §4.5).
func (a *Aggregator) Finalize(state *model.ClusterState) error {
	results := append([]model.JobResult(nil), state.CompletedResults...)
	sort.Slice(results, func(i, j int) bool { return results[i].JobID < results[j].JobID })

	if err := a.writeResultsTxt(results); err != nil {
		return fmt.Errorf("aggregator: writing results.txt: %w", err)
	}
	if err := a.writeErrorsTxt(results); err != nil {
		return fmt.Errorf("aggregator: writing errors.txt: %w", err)
	}
	if err := a.writeStatsSummary(results); err != nil {
		return fmt.Errorf("aggregator: writing stats_summary.json: %w", err)
	}
	a.log.Info().Int("jobs", len(results)).Msg("run finalized")
	return nil
}

func (a *Aggregator) writeResultsTxt(results []model.JobResult) error {
	var b []byte
	b = append(b, []byte("index\tname\treturn_code\tstatus\texec_time_s\tcompletion_time\tbatch_id\thpc_job_id\n")...)
	for i, r := range results {
		line := fmt.Sprintf("%d\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			i, r.Name, r.ReturnCode, r.Status,
			strconv.FormatFloat(r.ExecTimeSeconds, 'f', -1, 64),
			r.CompletionTime.Format(time.RFC3339), r.BatchID, r.HPCJobID)
		b = append(b, []byte(line)...)
	}
	return os.WriteFile(filepath.Join(a.outputDir, "results.txt"), b, 0o644)
}

func (a *Aggregator) writeErrorsTxt(results []model.JobResult) error {
	var b []byte
	for _, r := range results {
		if r.Status == model.StatusFinished && r.ReturnCode == 0 {
			continue
		}
		line := fmt.Sprintf("job=%s batch_id=%d status=%s return_code=%d\n", r.Name, r.BatchID, r.Status, r.ReturnCode)
		b = append(b, []byte(line)...)
	}
	return os.WriteFile(filepath.Join(a.outputDir, "errors.txt"), b, 0o644)
}

func (a *Aggregator) writeStatsSummary(results []model.JobResult) error {
	summary := statsSummary{
		TotalJobs:    len(results),
		StatusCounts: map[string]int{},
		GeneratedAt:  time.Now(),
	}
	for _, r := range results {
		summary.StatusCounts[string(r.Status)]++
		summary.TotalExecTimeS += r.ExecTimeSeconds
	}
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.outputDir, "stats_summary.json"), raw, 0o644)
}

// Resubmit reads completed_results and builds a reduced Configuration
// containing jobs selected by failed/missing, union'd, with the prior
// results of their non-selected blockers (whatever their status) carried
// forward into a fresh ClusterState so dependency edges onto them are
// satisfied without re-running (spec §4.5, property P5).
func (a *Aggregator) Resubmit(state *model.ClusterState, includeFailed, includeMissing bool) (*model.Configuration, *model.ClusterState, error) {
	resultsByID := state.ResultByJobID()
	selected := make(map[int]bool)
	for _, r := range state.CompletedResults {
		if includeFailed && r.Status == model.StatusFinished && r.ReturnCode != 0 {
			selected[r.JobID] = true
		}
		if includeMissing && r.Status == model.StatusMissing {
			selected[r.JobID] = true
		}
	}

	jobsByID := a.cfg.JobByID()
	reduced := model.Configuration{
		SubmissionGroups: a.cfg.SubmissionGroups,
		SetupCommand:     a.cfg.SetupCommand,
		TeardownCommand:  a.cfg.TeardownCommand,
		UserData:         a.cfg.UserData,
	}
	for _, job := range a.cfg.Jobs {
		if selected[job.ID] {
			reduced.Jobs = append(reduced.Jobs, job)
		}
	}
	if len(reduced.Jobs) == 0 {
		return nil, nil, fmt.Errorf("aggregator: no jobs matched the resubmission criteria")
	}

	configID, err := reduced.ConfigID()
	if err != nil {
		return nil, nil, fmt.Errorf("aggregator: deriving config id for reduced configuration: %w", err)
	}
	newState := model.NewClusterState(configID)

	// Carry forward the prior result of any non-selected job the reduced
	// set's jobs depend on, so their blocked_by edges are already satisfied.
	for _, job := range reduced.Jobs {
		for _, blockerID := range job.BlockedBy {
			if selected[blockerID] {
				continue
			}
			if r, ok := resultsByID[blockerID]; ok {
				newState.AppendResult(r)
			} else if _, ok := jobsByID[blockerID]; ok {
				return nil, nil, fmt.Errorf("aggregator: job %q depends on job %d with no prior successful result", job.EffectiveName(), blockerID)
			}
		}
	}

	return &reduced, newState, nil
}
