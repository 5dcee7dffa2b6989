package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/config"
	"github.com/jade-hpc/jade/internal/model"
	"github.com/jade-hpc/jade/internal/worker"
)

var (
	runJobsConfigPath string
	runJobsOutput     string
	runJobsBatchID    int
	runJobsNodes      string
)

var runJobsCmd = &cobra.Command{
	Use:    "run-jobs",
	Short:  "Run a single batch's jobs on this compute node (invoked by the rendered submit script)",
	Hidden: true,
	RunE:   runRunJobs,
}

func init() {
	runJobsCmd.Flags().StringVar(&runJobsConfigPath, "config", "", "path to the batch's filtered job configuration (required)")
	runJobsCmd.Flags().StringVar(&runJobsOutput, "output", "", "run output directory (required)")
	runJobsCmd.Flags().IntVar(&runJobsBatchID, "batch-id", 0, "batch id being executed (required)")
	runJobsCmd.Flags().StringVar(&runJobsNodes, "nodes", "", "comma-separated compute node names for multi-node jobs")
	_ = runJobsCmd.MarkFlagRequired("config")
	_ = runJobsCmd.MarkFlagRequired("output")
	_ = runJobsCmd.MarkFlagRequired("batch-id")
}

func runRunJobs(cmd *cobra.Command, _ []string) error {
	log := newLogger(logLevel, logPretty)

	cfg, err := config.LoadBatchConfiguration(runJobsConfigPath)
	if err != nil {
		return fmt.Errorf("loading batch configuration: %w", err)
	}
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("batch configuration %s has no jobs", runJobsConfigPath)
	}

	group, err := groupForJobs(cfg, cfg.Jobs)
	if err != nil {
		return err
	}

	store := clusterstore.New(runJobsOutput, log)
	state, err := store.Read()
	if err != nil {
		return fmt.Errorf("reading cluster state: %w", err)
	}
	priorCompleted := map[int]model.JobResult{}
	if state != nil {
		priorCompleted = state.ResultByJobID()
	}

	pool, err := worker.New(worker.Config{
		BatchID:          runJobsBatchID,
		Jobs:             cfg.Jobs,
		Group:            group,
		OutputDir:        runJobsOutput,
		ComputeNodeNames: computeNodeNames(runJobsNodes),
		PriorCompleted:   priorCompleted,
		Canceller:        store,
		Log:              log,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	results, err := pool.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("running batch %d: %w", runJobsBatchID, err)
	}
	log.Info().Int("batch_id", runJobsBatchID).Int("jobs", len(results)).Msg("batch finished on this node")
	return nil
}

// groupForJobs returns the SubmissionGroup every job in jobs belongs to.
// Batcher.Compute only ever packs a batch from a single group, so the first
// job's effective group determines it for the whole batch.
func groupForJobs(cfg *model.Configuration, jobs []model.Job) (model.SubmissionGroup, error) {
	groups := cfg.GroupByName()
	name := jobs[0].SubmissionGroup
	if name == "" && len(cfg.SubmissionGroups) == 1 {
		name = cfg.SubmissionGroups[0].Name
	}
	group, ok := groups[name]
	if !ok {
		return model.SubmissionGroup{}, fmt.Errorf("no submission_group %q found for batch jobs", name)
	}
	return group, nil
}

func computeNodeNames(flagValue string) []string {
	if flagValue != "" {
		return strings.Split(flagValue, ",")
	}
	if host, err := os.Hostname(); err == nil {
		return []string{host}
	}
	return nil
}
