// Package config loads JADE's own runtime settings (via viper) and the
// domain-specific job/HPC configuration documents the spec defines (spec
// §6).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds JADE's own runtime settings: logging, metrics exposure,
// and the submitter loop's timing knobs. Distinct from the job
// Configuration and HPC config documents, which describe the run itself.
type AppConfig struct {
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Submitter SubmitterConfig `mapstructure:"submitter"`
}

// LogConfig controls zerolog's output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// SubmitterConfig controls the SubmitterLoop's timing (documented defaults
// per spec §4.4, open question Q3: not yet fully user-configurable).
type SubmitterConfig struct {
	NoDistributedSubmitter bool          `mapstructure:"no_distributed_submitter"`
	LockTimeout            time.Duration `mapstructure:"lock_timeout"`
	PollInterval           time.Duration `mapstructure:"poll_interval"`
}

// Load reads an AppConfig from configPath (YAML), applying defaults and
// JADE_-prefixed environment overrides.
func Load(configPath string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("jade")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setAppDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling app config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

func setAppDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.output", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("submitter.no_distributed_submitter", false)
	v.SetDefault("submitter.lock_timeout", "10m")
	v.SetDefault("submitter.poll_interval", "1s")
}

// Validate checks AppConfig invariants.
func (c *AppConfig) Validate() error {
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1-65535 when metrics enabled, got %d", c.Metrics.Port)
	}
	if c.Submitter.LockTimeout <= 0 {
		return fmt.Errorf("submitter.lock_timeout must be positive")
	}
	if c.Submitter.PollInterval <= 0 {
		return fmt.Errorf("submitter.poll_interval must be positive")
	}
	return nil
}

// Default returns JADE's default runtime settings.
func Default() *AppConfig {
	return &AppConfig{
		Log:     LogConfig{Level: "info", Pretty: false, Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Submitter: SubmitterConfig{
			LockTimeout:  10 * time.Minute,
			PollInterval: time.Second,
		},
	}
}
