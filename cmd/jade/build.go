package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/aggregator"
	"github.com/jade-hpc/jade/internal/batcher"
	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/config"
	"github.com/jade-hpc/jade/internal/hpcadapter"
	"github.com/jade-hpc/jade/internal/metrics"
	"github.com/jade-hpc/jade/internal/model"
	"github.com/jade-hpc/jade/internal/submitloop"
	"github.com/jade-hpc/jade/internal/submitter"
)

// loadRunConfiguration loads the JSON job configuration and, when
// hpcConfigPath is non-empty, overlays a TOML HPC config onto every
// submission group that doesn't already carry one inline.
func loadRunConfiguration(jobsConfigPath, hpcConfigPath string) (*model.Configuration, error) {
	cfg, err := config.LoadJobConfiguration(jobsConfigPath)
	if err != nil {
		return nil, err
	}
	if hpcConfigPath == "" {
		return cfg, nil
	}

	hpc, err := config.LoadHPCConfig(hpcConfigPath)
	if err != nil {
		return nil, err
	}
	for _, g := range cfg.SubmissionGroups {
		if g.HPCConfig.HPCType != "" {
			continue
		}
		if err := config.ApplyHPCConfig(cfg, g.Name, hpc); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// resolveAdapter picks the hpc_type from cfg's first submission group and
// constructs the matching Adapter.
func resolveAdapter(cfg *model.Configuration, log zerolog.Logger) (hpcadapter.Adapter, error) {
	if len(cfg.SubmissionGroups) == 0 {
		return nil, fmt.Errorf("configuration has no submission_groups")
	}
	hpcType := cfg.SubmissionGroups[0].HPCConfig.HPCType
	if hpcType == "" {
		hpcType = "fake"
	}
	return hpcadapter.NewRegistry().New(hpcType, log)
}

// buildLoop wires a submitloop.Loop over outputDir's cluster state, following
// the same collaborators used by the rendered submission script's
// run-jobs/try-submit chain.
func buildLoop(cfg *model.Configuration, outputDir string, noDistributedSubmitter bool, log zerolog.Logger) (*submitloop.Loop, error) {
	adapter, err := resolveAdapter(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("resolving hpc adapter: %w", err)
	}

	store := clusterstore.New(outputDir, log)
	b := batcher.New(cfg, log)
	sub := submitter.New(cfg, adapter, outputDir, noDistributedSubmitter, log)
	agg := aggregator.New(cfg, outputDir, log)
	m := metrics.New()

	return submitloop.New(cfg, store, b, sub, adapter, agg, m, log), nil
}
