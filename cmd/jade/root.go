package main

import (
	"github.com/spf13/cobra"
)

const banner = `
     ██╗ █████╗ ██████╗ ███████╗
     ██║██╔══██╗██╔══██╗██╔════╝
     ██║███████║██║  ██║█████╗
██   ██║██╔══██║██║  ██║██╔══╝
╚█████╔╝██║  ██║██████╔╝███████╗
 ╚════╝ ╚═╝  ╚═╝╚═════╝ ╚══════╝`

var (
	logLevel  string
	logPretty bool

	rootCmd = &cobra.Command{
		Use:   "jade",
		Short: "JADE",
		Long:  banner + "\n\nBatch orchestration for HPC job submission.",
	}
)

func initCommands() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "enable pretty console logging")

	rootCmd.AddCommand(submitJobsCmd)
	rootCmd.AddCommand(trySubmitCmd)
	rootCmd.AddCommand(runJobsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(resubmitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
