package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jade-hpc/jade/internal/model"
)

const sampleHPCConfig = `
hpc_type = "slurm"
job_prefix = "jade"

[hpc]
account = "myaccount"
walltime = "02:00:00"
partition = "standard"
nodes = 4
`

func TestLoadHPCConfig_ParsesNestedHPCBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hpc.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleHPCConfig), 0o644))

	hpc, err := LoadHPCConfig(path)
	require.NoError(t, err)
	require.Equal(t, "slurm", hpc.HPCType)
	require.Equal(t, "myaccount", hpc.Account)
	require.Equal(t, "02:00:00", hpc.Walltime)
	require.Equal(t, 4, hpc.Nodes)
}

func TestLoadHPCConfig_DefaultsNodesToOneWhenOmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hpc.toml")
	doc := "hpc_type = \"slurm\"\n\n[hpc]\naccount = \"myaccount\"\nwalltime = \"01:00:00\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	hpc, err := LoadHPCConfig(path)
	require.NoError(t, err)
	require.Equal(t, 1, hpc.Nodes)
}

func TestLoadHPCConfig_RejectsMissingAccount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hpc.toml")
	require.NoError(t, os.WriteFile(path, []byte("hpc_type = \"fake\"\nwalltime = \"00:10:00\"\nnodes = 1\n"), 0o644))

	_, err := LoadHPCConfig(path)
	require.Error(t, err)
}

func TestApplyHPCConfig_SetsGroupHPCConfig(t *testing.T) {
	cfg := &model.Configuration{
		SubmissionGroups: []model.SubmissionGroup{{Name: "default", MaxNodes: 1}},
	}
	hpc := &model.HPCConfig{HPCType: "slurm", Account: "a", Walltime: "01:00:00", Nodes: 2}

	require.NoError(t, ApplyHPCConfig(cfg, "default", hpc))
	require.Equal(t, "slurm", cfg.SubmissionGroups[0].HPCConfig.HPCType)

	require.Error(t, ApplyHPCConfig(cfg, "missing", hpc))
}
