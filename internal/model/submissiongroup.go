package model

// HPCConfig carries the scheduler-facing parameters of a SubmissionGroup,
// loaded from the TOML HPC config document (spec §6).
type HPCConfig struct {
	HPCType       string `mapstructure:"hpc_type"        toml:"hpc_type"`
	JobPrefix     string `mapstructure:"job_prefix"      toml:"job_prefix"`
	Account       string `mapstructure:"account"         toml:"account"`
	Walltime      string `mapstructure:"walltime"        toml:"walltime"`
	Partition     string `mapstructure:"partition"       toml:"partition"`
	QOS           string `mapstructure:"qos"             toml:"qos"`
	Mem           string `mapstructure:"mem"             toml:"mem"`
	Tmp           string `mapstructure:"tmp"             toml:"tmp"`
	Nodes         int    `mapstructure:"nodes"           toml:"nodes"`
	NTasks        int    `mapstructure:"ntasks"          toml:"ntasks"`
	NTasksPerNode int    `mapstructure:"ntasks_per_node" toml:"ntasks_per_node"`
	Gres          string `mapstructure:"gres"            toml:"gres"`
}

// SubmissionGroup names a batching policy a Job may reference.
type SubmissionGroup struct {
	Name                        string    `json:"name"`
	HPCConfig                   HPCConfig `json:"hpc_config"`
	PerNodeBatchSize            int       `json:"per_node_batch_size,omitempty"`
	TimeBasedBatching           bool      `json:"time_based_batching,omitempty"`
	NumParallelProcessesPerNode int       `json:"num_parallel_processes_per_node,omitempty"`
	TryAddBlockedJobs           bool      `json:"try_add_blocked_jobs,omitempty"`
	NodeSetupCommand            string    `json:"node_setup_command,omitempty"`
	NodeTeardownCommand         string    `json:"node_teardown_command,omitempty"`
	MaxNodes                    int       `json:"max_nodes"`
	PollIntervalSeconds         int       `json:"poll_interval_seconds,omitempty"`
}

// EffectiveParallelism returns NumParallelProcessesPerNode, defaulting to
// runtime.NumCPU() when unset.
func (g SubmissionGroup) EffectiveParallelism(numCPU int) int {
	if g.NumParallelProcessesPerNode > 0 {
		return g.NumParallelProcessesPerNode
	}
	return numCPU
}

// EffectivePollInterval returns the configured poll interval in seconds,
// defaulting to 1 (spec §4.3).
func (g SubmissionGroup) EffectivePollInterval() int {
	if g.PollIntervalSeconds > 0 {
		return g.PollIntervalSeconds
	}
	return 1
}
