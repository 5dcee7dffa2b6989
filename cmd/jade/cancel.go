package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/canceller"
	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/config"
	"github.com/jade-hpc/jade/internal/hpcadapter"
)

var (
	cancelOutput string
	cancelConfig string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Request cancellation of a running run",
	RunE:  runCancel,
}

func init() {
	cancelCmd.Flags().StringVar(&cancelOutput, "output", "", "output directory of the run to cancel (required)")
	cancelCmd.Flags().StringVar(&cancelConfig, "config", "", "path to the run's job configuration JSON file, used to resolve the hpc_type for cancelling submitted batches")
	_ = cancelCmd.MarkFlagRequired("output")
}

func runCancel(cmd *cobra.Command, _ []string) error {
	log := newLogger(logLevel, logPretty)

	store := clusterstore.New(cancelOutput, log)
	adapter, jobPrefix, err := resolveCancelAdapter(log)
	if err != nil {
		return err
	}

	c := canceller.New(store, adapter, jobPrefix, log)
	if err := c.Cancel(cmd.Context()); err != nil {
		return fmt.Errorf("requesting cancellation: %w", err)
	}
	log.Info().Str("output", cancelOutput).Msg("cancellation requested")
	return nil
}

// resolveCancelAdapter resolves the scheduler adapter and this run's
// job_prefix from --config when given; without it, batches already
// submitted to a real scheduler can still be flagged canceled in
// ClusterState but the scheduler itself won't be asked to tear them down,
// so a fake adapter is used as a harmless no-op fallback.
func resolveCancelAdapter(log zerolog.Logger) (hpcadapter.Adapter, string, error) {
	if cancelConfig == "" {
		log.Warn().Msg("cancel: no --config given, submitted hpc jobs will not be cancelled on the scheduler")
		adapter, err := hpcadapter.NewRegistry().New("fake", log)
		return adapter, "", err
	}
	cfg, err := config.LoadJobConfiguration(cancelConfig)
	if err != nil {
		return nil, "", fmt.Errorf("loading configuration: %w", err)
	}
	adapter, err := resolveAdapter(cfg, log)
	if err != nil {
		return nil, "", err
	}
	jobPrefix := ""
	if len(cfg.SubmissionGroups) > 0 {
		jobPrefix = cfg.SubmissionGroups[0].HPCConfig.JobPrefix
	}
	return adapter, jobPrefix, nil
}
