package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jade-hpc/jade/internal/model"
)

// LoadJobConfiguration reads the JSON Configuration document (spec §6: jobs,
// submission_groups, setup_command, teardown_command, user_data) from path,
// validates it, and returns it. Configuration is a data document exchanged
// between JADE processes, not an operator-facing settings file, so it is
// decoded with encoding/json directly rather than through viper (mirrors the
// teacher's own direct encoding/json use for its wire documents).
func LoadJobConfiguration(path string) (*model.Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading job configuration %s: %w", path, err)
	}

	var cfg model.Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing job configuration %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validating job configuration: %w", err)
	}
	return &cfg, nil
}

// LoadBatchConfiguration reads a batch-filtered configuration document
// (written by internal/submitter's writeFilteredConfig) without running
// Configuration.Validate: a filtered batch intentionally contains only its
// own jobs, so blocked_by edges onto jobs resolved in earlier batches would
// otherwise fail the unknown-job-id check.
func LoadBatchConfiguration(path string) (*model.Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading batch configuration %s: %w", path, err)
	}
	var cfg model.Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing batch configuration %s: %w", path, err)
	}
	return &cfg, nil
}

// WriteJobConfiguration writes cfg to path as indented JSON, matching the
// layout produced by submitter.writeFilteredConfig for batch-scoped configs.
func WriteJobConfiguration(path string, cfg *model.Configuration) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling job configuration: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: writing job configuration %s: %w", path, err)
	}
	return nil
}
