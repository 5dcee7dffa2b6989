package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/model"
)

var (
	submitJobsConfigPath    string
	submitJobsHPCConfigPath string
	submitJobsOutput        string
	submitJobsNoDistributed bool
)

var submitJobsCmd = &cobra.Command{
	Use:   "submit-jobs",
	Short: "Start a new run: create cluster state and submit the first batches",
	RunE:  runSubmitJobs,
}

func init() {
	submitJobsCmd.Flags().StringVar(&submitJobsConfigPath, "config", "", "path to the job configuration JSON file (required)")
	submitJobsCmd.Flags().StringVar(&submitJobsHPCConfigPath, "hpc-config", "", "path to an HPC config TOML file to overlay onto submission groups without an inline hpc_config")
	submitJobsCmd.Flags().StringVar(&submitJobsOutput, "output", "", "output directory for this run (required)")
	submitJobsCmd.Flags().BoolVar(&submitJobsNoDistributed, "no-distributed-submitter", false, "disable the JobRunner-chained try-submit; the operator must call try-submit periodically")
	_ = submitJobsCmd.MarkFlagRequired("config")
	_ = submitJobsCmd.MarkFlagRequired("output")
}

func runSubmitJobs(cmd *cobra.Command, _ []string) error {
	log := newLogger(logLevel, logPretty)

	cfg, err := loadRunConfiguration(submitJobsConfigPath, submitJobsHPCConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := ensureOutputLayout(submitJobsOutput); err != nil {
		return err
	}

	store := clusterstore.New(submitJobsOutput, log)
	existing, err := store.Read()
	if err != nil {
		return fmt.Errorf("reading existing cluster state: %w", err)
	}
	if existing == nil {
		configID, err := cfg.ConfigID()
		if err != nil {
			return fmt.Errorf("deriving config id: %w", err)
		}
		if err := store.Write(model.NewClusterState(configID)); err != nil {
			return fmt.Errorf("writing initial cluster state: %w", err)
		}
		log.Info().Str("config_id", configID).Str("output", submitJobsOutput).Msg("initialized new run")
	}

	loop, err := buildLoop(cfg, submitJobsOutput, submitJobsNoDistributed, log)
	if err != nil {
		return err
	}

	outcome, err := loop.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("running submitter loop: %w", err)
	}

	state, err := store.Read()
	if err != nil {
		return fmt.Errorf("reading cluster state after submission: %w", err)
	}
	return interpretOutcome(outcome, state)
}
