package hpcadapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/model"
)

// slurmAdapter drives the real SLURM CLI (sbatch/squeue/scancel) as
// subprocesses. No ecosystem SLURM client exists among the examined
// dependency trees, so this talks to the scheduler the way the reference
// CLI does: invoke, parse stdout.
type slurmAdapter struct {
	log zerolog.Logger
}

// NewSlurmAdapter returns an Adapter backed by the real SLURM commands.
func NewSlurmAdapter(log zerolog.Logger) Adapter {
	return &slurmAdapter{log: log.With().Str("component", "hpcadapter.slurm").Logger()}
}

func (a *slurmAdapter) Name() string { return "slurm" }

func (a *slurmAdapter) RenderSubmitScript(spec model.BatchSpec, group model.SubmissionGroup, outputDir string, noDistributedSubmitter bool) (string, error) {
	hpc := group.HPCConfig
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH --job-name=%sbatch_%d\n", hpc.JobPrefix, spec.BatchID)
	fmt.Fprintf(&b, "#SBATCH --account=%s\n", hpc.Account)
	fmt.Fprintf(&b, "#SBATCH --time=%s\n", hpc.Walltime)
	fmt.Fprintf(&b, "#SBATCH --nodes=%d\n", hpc.Nodes)
	if hpc.Partition != "" {
		fmt.Fprintf(&b, "#SBATCH --partition=%s\n", hpc.Partition)
	}
	if hpc.QOS != "" {
		fmt.Fprintf(&b, "#SBATCH --qos=%s\n", hpc.QOS)
	}
	if hpc.Mem != "" {
		fmt.Fprintf(&b, "#SBATCH --mem=%s\n", hpc.Mem)
	}
	if hpc.NTasks > 0 {
		fmt.Fprintf(&b, "#SBATCH --ntasks=%d\n", hpc.NTasks)
	}
	if hpc.NTasksPerNode > 0 {
		fmt.Fprintf(&b, "#SBATCH --ntasks-per-node=%d\n", hpc.NTasksPerNode)
	}
	if hpc.Gres != "" {
		fmt.Fprintf(&b, "#SBATCH --gres=%s\n", hpc.Gres)
	}
	b.WriteString("\n")
	b.WriteString(jobRunnerInvocation(spec, outputDir, noDistributedSubmitter))

	return writeScript(outputDir, spec.BatchID, b.String())
}

func (a *slurmAdapter) Submit(ctx context.Context, scriptPath string) (string, error) {
	out, err := exec.CommandContext(ctx, "sbatch", "--parsable", scriptPath).Output()
	if err != nil {
		return "", fmt.Errorf("hpcadapter: sbatch %s: %w", scriptPath, err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("hpcadapter: sbatch %s returned no job id", scriptPath)
	}
	return id, nil
}

func (a *slurmAdapter) Status(ctx context.Context, hpcJobID string) (Status, error) {
	out, err := exec.CommandContext(ctx, "squeue", "-h", "-j", hpcJobID, "-o", "%T").Output()
	if err != nil {
		// squeue returns non-zero once the job has aged out of its view;
		// treat that as complete rather than an error.
		return StatusComplete, nil
	}
	state := strings.TrimSpace(string(out))
	if state == "" {
		return StatusComplete, nil
	}
	switch state {
	case "COMPLETED", "FAILED", "CANCELLED", "TIMEOUT", "NODE_FAIL":
		return StatusComplete, nil
	default:
		return StatusRunning, nil
	}
}

func (a *slurmAdapter) Cancel(ctx context.Context, hpcJobID string) error {
	if err := exec.CommandContext(ctx, "scancel", hpcJobID).Run(); err != nil {
		return fmt.Errorf("hpcadapter: scancel %s: %w", hpcJobID, err)
	}
	return nil
}

func (a *slurmAdapter) ListActiveIDs(ctx context.Context, prefix string) ([]string, error) {
	user := os.Getenv("USER")
	cmd := exec.CommandContext(ctx, "squeue", "-h", "-u", user, "-o", "%A %j")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("hpcadapter: squeue: %w", err)
	}

	var ids []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		if prefix == "" || strings.HasPrefix(name, prefix) {
			ids = append(ids, id)
		}
	}
	return ids, scanner.Err()
}
