package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/clusterstore"
)

var (
	statusOutput string
	statusServe  bool
	statusAddr   string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current cluster state, or serve it over HTTP",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusOutput, "output", "", "output directory of the run to report on (required)")
	statusCmd.Flags().BoolVar(&statusServe, "serve", false, "serve /status, /healthz, and /metrics over HTTP instead of printing once")
	statusCmd.Flags().StringVar(&statusAddr, "addr", ":9090", "listen address when --serve is set")
	_ = statusCmd.MarkFlagRequired("output")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	log := newLogger(logLevel, logPretty)
	store := clusterstore.New(statusOutput, log)

	if statusServe {
		return serveStatus(cmd, store, log)
	}

	state, err := store.Read()
	if err != nil {
		return fmt.Errorf("reading cluster state: %w", err)
	}
	if state == nil {
		return fmt.Errorf("no cluster state found in %s", statusOutput)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
