package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/clusterstore"
)

var (
	trySubmitConfigPath    string
	trySubmitHPCConfigPath string
	trySubmitOutput        string
	trySubmitNoDistributed bool
)

var trySubmitCmd = &cobra.Command{
	Use:   "try-submit",
	Short: "Run a single SubmitterLoop iteration against an existing run",
	RunE:  runTrySubmit,
}

func init() {
	trySubmitCmd.Flags().StringVar(&trySubmitConfigPath, "config", "", "path to the job configuration JSON file (required)")
	trySubmitCmd.Flags().StringVar(&trySubmitHPCConfigPath, "hpc-config", "", "path to an HPC config TOML file to overlay onto submission groups without an inline hpc_config")
	trySubmitCmd.Flags().StringVar(&trySubmitOutput, "output", "", "output directory for the run (required)")
	trySubmitCmd.Flags().BoolVar(&trySubmitNoDistributed, "no-distributed-submitter", false, "disable chaining the rendered scripts into another try-submit")
	_ = trySubmitCmd.MarkFlagRequired("config")
	_ = trySubmitCmd.MarkFlagRequired("output")
}

func runTrySubmit(cmd *cobra.Command, _ []string) error {
	log := newLogger(logLevel, logPretty)

	cfg, err := loadRunConfiguration(trySubmitConfigPath, trySubmitHPCConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	loop, err := buildLoop(cfg, trySubmitOutput, trySubmitNoDistributed, log)
	if err != nil {
		return err
	}

	outcome, err := loop.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("running submitter loop: %w", err)
	}

	store := clusterstore.New(trySubmitOutput, log)
	state, err := store.Read()
	if err != nil {
		return fmt.Errorf("reading cluster state after submission: %w", err)
	}
	return interpretOutcome(outcome, state)
}
