package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jade-hpc/jade/internal/model"
)

// LoadHPCConfig reads a TOML HPC config document (spec §6: hpc_type,
// job_prefix, and an [hpc] block of scheduler parameters) from path into an
// model.HPCConfig, following shared-publisher-leader-app/config/config.go's
// viper.New()+SetConfigFile+Unmarshal shape.
func LoadHPCConfig(path string) (*model.HPCConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	setHPCDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading hpc config %s: %w", path, err)
	}

	var hpc model.HPCConfig
	if err := v.UnmarshalKey("hpc", &hpc); err != nil {
		return nil, fmt.Errorf("config: unmarshaling hpc config %s: %w", path, err)
	}
	hpc.HPCType = v.GetString("hpc_type")
	hpc.JobPrefix = v.GetString("job_prefix")

	if err := validateHPCConfig(&hpc); err != nil {
		return nil, fmt.Errorf("config: validating hpc config %s: %w", path, err)
	}
	return &hpc, nil
}

func setHPCDefaults(v *viper.Viper) {
	v.SetDefault("hpc_type", "slurm")
	v.SetDefault("job_prefix", "jade")
	v.SetDefault("hpc.nodes", 1)
}

func validateHPCConfig(hpc *model.HPCConfig) error {
	if hpc.HPCType == "" {
		return fmt.Errorf("hpc_type is required")
	}
	if hpc.Account == "" {
		return fmt.Errorf("hpc.account is required")
	}
	if hpc.Walltime == "" {
		return fmt.Errorf("hpc.walltime is required")
	}
	if hpc.Nodes <= 0 {
		return fmt.Errorf("hpc.nodes must be positive")
	}
	return nil
}

// ApplyHPCConfig sets group's HPCConfig in place to hpc. Used when the HPC
// parameters for a submission group are loaded from a standalone TOML
// document rather than embedded in the job Configuration JSON.
func ApplyHPCConfig(cfg *model.Configuration, groupName string, hpc *model.HPCConfig) error {
	for i := range cfg.SubmissionGroups {
		if cfg.SubmissionGroups[i].Name == groupName {
			cfg.SubmissionGroups[i].HPCConfig = *hpc
			return nil
		}
	}
	return fmt.Errorf("config: no submission_group named %q to apply hpc config to", groupName)
}
