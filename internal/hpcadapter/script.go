package hpcadapter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jade-hpc/jade/internal/model"
)

// jobRunnerInvocation builds the shell lines that invoke the JobRunner
// against the batch's filtered config and, unless noDistributedSubmitter is
// set, chain into try-submit on exit (spec §4.2). No environment setup is
// sourced; the lines run in whatever environment the scheduler provides.
func jobRunnerInvocation(spec model.BatchSpec, outputDir string, noDistributedSubmitter bool) string {
	configPath := filepath.Join(outputDir, "configs", fmt.Sprintf("config_batch_%d.json", spec.BatchID))
	body := fmt.Sprintf(
		"jade run-jobs --config %s --output %s --batch-id %d\n",
		configPath, outputDir, spec.BatchID,
	)
	if !noDistributedSubmitter {
		body += fmt.Sprintf("jade try-submit --output %s\n", outputDir)
	}
	return body
}

// writeScript renders contents to configs/submit_batch_<id>.sh and returns
// its path.
func writeScript(outputDir string, batchID int, contents string) (string, error) {
	dir := filepath.Join(outputDir, "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("hpcadapter: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("submit_batch_%d.sh", batchID))
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		return "", fmt.Errorf("hpcadapter: writing %s: %w", path, err)
	}
	return path, nil
}
