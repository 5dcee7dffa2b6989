// Package hpcadapter abstracts the underlying batch scheduler (SLURM or a
// fake for local/test runs) behind a single capability interface (spec
// §4.2, §6: hpc_type ∈ {slurm, fake, local, ...}).
package hpcadapter

import (
	"context"
	"fmt"

	"github.com/jade-hpc/jade/internal/model"
)

// Status is the scheduler-reported lifecycle state of a submitted batch.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusUnknown  Status = "unknown"
)

// Adapter is the capability surface every scheduler backend implements.
type Adapter interface {
	// Name identifies the backend (matches hpc_type in the TOML HPC config).
	Name() string

	// RenderSubmitScript writes a shell submission script for spec and
	// returns its path. The script invokes the JobRunner with the filtered
	// config and on exit calls try-submit unless distributed submission is
	// disabled (spec §4.2); it does not source any environment setup.
	RenderSubmitScript(spec model.BatchSpec, group model.SubmissionGroup, outputDir string, noDistributedSubmitter bool) (scriptPath string, err error)

	// Submit hands scriptPath to the scheduler and returns its native job id.
	Submit(ctx context.Context, scriptPath string) (hpcJobID string, err error)

	// Status reports the scheduler's current view of hpcJobID.
	Status(ctx context.Context, hpcJobID string) (Status, error)

	// Cancel asks the scheduler to terminate hpcJobID.
	Cancel(ctx context.Context, hpcJobID string) error

	// ListActiveIDs returns the hpc job ids the scheduler still considers
	// live among those whose job name starts with prefix, so a sweep never
	// touches jobs outside this JADE run (spec §2, §5: "list_active_ids(prefix)").
	// An empty prefix matches every job the caller can see.
	ListActiveIDs(ctx context.Context, prefix string) ([]string, error)
}

// ErrUnknownHPCType is returned by New when hpcType has no registered
// constructor.
var ErrUnknownHPCType = fmt.Errorf("hpcadapter: unknown hpc_type")
