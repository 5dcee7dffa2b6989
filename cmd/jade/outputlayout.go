package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// ensureOutputLayout creates the output directory tree JADE's components
// expect to already exist: configs/ (batch scripts and filtered configs),
// results/ (per-batch result CSVs drained by DrainResultFiles), and
// job-stdio/ (per-job stdout/stderr capture).
func ensureOutputLayout(outputDir string) error {
	for _, sub := range []string{"", "configs", "results", "job-stdio"} {
		dir := filepath.Join(outputDir, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
