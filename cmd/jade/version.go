package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version, BuildTime, and GitCommit are set via -ldflags at release build
// time; for local builds Version defaults to "dev" and BuildTime and
// GitCommit to "unknown".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(*cobra.Command, []string) {
		fmt.Println(banner)
		fmt.Println()
		fmt.Printf("JADE\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
