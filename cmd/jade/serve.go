package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jade-hpc/jade/internal/clusterstore"
	"github.com/jade-hpc/jade/internal/statusapi"
)

func serveStatus(cmd *cobra.Command, store *clusterstore.Store, log zerolog.Logger) error {
	cfg := statusapi.DefaultConfig()
	cfg.ListenAddr = statusAddr

	srv := statusapi.New(cfg, store, log)
	return srv.Start(cmd.Context())
}
