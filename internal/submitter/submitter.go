// Package submitter renders, submits, and records batches against the
// cluster's shared state (spec §4.2).
package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/model"
)

// backoff is the retry schedule for HpcAdapter.Submit failures (spec §4.2:
// "retry up to 3x with exponential backoff (1s, 2s, 4s)"). A documented
// default, not yet exposed as configuration (open question Q3).
var backoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Submitter renders a filtered config and submission script for each
// BatchSpec, submits it via an hpcadapter.Adapter, and records the
// resulting native job id into ClusterState.
type Submitter struct {
	cfg                    *model.Configuration
	adapter                hpcadapter.Adapter
	outputDir              string
	noDistributedSubmitter bool
	log                    zerolog.Logger
	sleep                  func(time.Duration)
}

// New returns a Submitter.
func New(cfg *model.Configuration, adapter hpcadapter.Adapter, outputDir string, noDistributedSubmitter bool, log zerolog.Logger) *Submitter {
	return &Submitter{
		cfg:                    cfg,
		adapter:                adapter,
		outputDir:              outputDir,
		noDistributedSubmitter: noDistributedSubmitter,
		log:                    log.With().Str("component", "submitter").Logger(),
		sleep:                  time.Sleep,
	}
}

// SubmitBatch writes the filtered config, renders a submission script, and
// submits it with the documented retry budget. On exhausted retries the
// batch stays out of state.ActiveBatches/SubmittedJobs so a later
// SubmitterLoop iteration retries it — idempotent by construction, since
// the same batch_id is never re-allocated (spec §4.2, §7).
func (s *Submitter) SubmitBatch(ctx context.Context, spec model.BatchSpec, group model.SubmissionGroup, state *model.ClusterState) error {
	if err := s.writeFilteredConfig(spec); err != nil {
		return fmt.Errorf("submitter: writing filtered config for batch %d: %w", spec.BatchID, err)
	}

	scriptPath, err := s.adapter.RenderSubmitScript(spec, group, s.outputDir, s.noDistributedSubmitter)
	if err != nil {
		return fmt.Errorf("submitter: rendering script for batch %d: %w", spec.BatchID, err)
	}

	hpcJobID, err := s.submitWithRetry(ctx, scriptPath, spec.BatchID)
	if err != nil {
		s.log.Error().Err(err).Int("batch_id", spec.BatchID).Msg("batch left formed but not submitted")
		return err
	}

	state.ActiveBatches[spec.BatchID] = model.ActiveBatch{
		HPCJobID:        hpcJobID,
		SubmissionGroup: spec.SubmissionGroup,
		JobIDs:          spec.JobIDs,
		State:           model.BatchSubmitted,
	}
	for _, id := range spec.JobIDs {
		state.MarkSubmitted(id)
	}
	s.log.Info().Int("batch_id", spec.BatchID).Str("hpc_job_id", hpcJobID).Msg("batch submitted")
	return nil
}

func (s *Submitter) submitWithRetry(ctx context.Context, scriptPath string, batchID int) (string, error) {
	var lastErr error
	attempts := len(backoff) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		id, err := s.adapter.Submit(ctx, scriptPath)
		if err == nil {
			return id, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("batch_id", batchID).Int("attempt", attempt+1).Msg("submit failed, retrying")
		if attempt < len(backoff) {
			s.sleep(backoff[attempt])
		}
	}
	return "", fmt.Errorf("submitter: exhausted retries submitting batch %d: %w", batchID, lastErr)
}

// writeFilteredConfig writes <output>/configs/config_batch_<id>.json
// containing only spec.JobIDs (spec §4.2, §6).
func (s *Submitter) writeFilteredConfig(spec model.BatchSpec) error {
	jobsByID := make(map[int]model.Job, len(s.cfg.Jobs))
	for _, j := range s.cfg.Jobs {
		jobsByID[j.ID] = j
	}

	filtered := model.Configuration{
		SubmissionGroups: s.cfg.SubmissionGroups,
		SetupCommand:     s.cfg.SetupCommand,
		TeardownCommand:  s.cfg.TeardownCommand,
		UserData:         s.cfg.UserData,
	}
	for _, id := range spec.JobIDs {
		if job, ok := jobsByID[id]; ok {
			filtered.Jobs = append(filtered.Jobs, job)
		}
	}

	dir := filepath.Join(s.outputDir, "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("config_batch_%d.json", spec.BatchID))
	raw, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling filtered config: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
