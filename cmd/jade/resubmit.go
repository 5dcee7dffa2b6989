package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/aggregator"
	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/config"
)

var (
	resubmitConfigPath    string
	resubmitHPCConfigPath string
	resubmitOutput        string
	resubmitNewOutput     string
	resubmitFailed        bool
	resubmitMissing       bool
	resubmitNoDistributed bool
)

var resubmitCmd = &cobra.Command{
	Use:   "resubmit",
	Short: "Build a reduced configuration from failed/missing jobs and submit it as a new run",
	RunE:  runResubmit,
}

func init() {
	resubmitCmd.Flags().StringVar(&resubmitConfigPath, "config", "", "path to the original job configuration JSON file (required)")
	resubmitCmd.Flags().StringVar(&resubmitHPCConfigPath, "hpc-config", "", "path to an HPC config TOML file to overlay onto submission groups without an inline hpc_config")
	resubmitCmd.Flags().StringVar(&resubmitOutput, "output", "", "output directory of the completed run to read results from (required)")
	resubmitCmd.Flags().StringVar(&resubmitNewOutput, "new-output", "", "output directory for the resubmitted run (required)")
	resubmitCmd.Flags().BoolVar(&resubmitFailed, "failed", false, "include jobs with a non-zero return code")
	resubmitCmd.Flags().BoolVar(&resubmitMissing, "missing", false, "include jobs missing a result (node died mid-batch)")
	resubmitCmd.Flags().BoolVar(&resubmitNoDistributed, "no-distributed-submitter", false, "disable the JobRunner-chained try-submit for the new run")
	_ = resubmitCmd.MarkFlagRequired("config")
	_ = resubmitCmd.MarkFlagRequired("output")
	_ = resubmitCmd.MarkFlagRequired("new-output")
}

func runResubmit(cmd *cobra.Command, _ []string) error {
	log := newLogger(logLevel, logPretty)

	if !resubmitFailed && !resubmitMissing {
		return fmt.Errorf("at least one of --failed or --missing is required")
	}

	cfg, err := loadRunConfiguration(resubmitConfigPath, resubmitHPCConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store := clusterstore.New(resubmitOutput, log)
	state, err := store.Read()
	if err != nil {
		return fmt.Errorf("reading cluster state: %w", err)
	}
	if state == nil {
		return fmt.Errorf("no cluster state found in %s", resubmitOutput)
	}

	agg := aggregator.New(cfg, resubmitOutput, log)
	reduced, newState, err := agg.Resubmit(state, resubmitFailed, resubmitMissing)
	if err != nil {
		return fmt.Errorf("building resubmission: %w", err)
	}

	if err := ensureOutputLayout(resubmitNewOutput); err != nil {
		return err
	}
	if err := config.WriteJobConfiguration(filepath.Join(resubmitNewOutput, "config.json"), reduced); err != nil {
		return fmt.Errorf("writing reduced configuration: %w", err)
	}

	newStore := clusterstore.New(resubmitNewOutput, log)
	if err := newStore.Write(newState); err != nil {
		return fmt.Errorf("writing resubmission cluster state: %w", err)
	}
	log.Info().Int("jobs", len(reduced.Jobs)).Str("new_output", resubmitNewOutput).Msg("resubmission configuration generated")

	loop, err := buildLoop(reduced, resubmitNewOutput, resubmitNoDistributed, log)
	if err != nil {
		return err
	}
	outcome, err := loop.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("running submitter loop: %w", err)
	}

	finalState, err := newStore.Read()
	if err != nil {
		return fmt.Errorf("reading cluster state after resubmission: %w", err)
	}
	return interpretOutcome(outcome, finalState)
}
