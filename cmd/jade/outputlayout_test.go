package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureOutputLayout_CreatesExpectedSubdirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run1")
	require.NoError(t, ensureOutputLayout(dir))

	for _, sub := range []string{"configs", "results", "job-stdio"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
