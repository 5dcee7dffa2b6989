package main

import "errors"

// Sentinel errors mapping run outcomes to the CLI exit codes (spec.md §6):
// 0 all jobs succeeded, 1 at least one job failed, 2 submission/configuration
// error, 3 cancellation.
var (
	errJobsFailed = errors.New("one or more jobs finished with a non-zero return code")
	errCanceled   = errors.New("run was canceled")
)

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errJobsFailed):
		return 1
	case errors.Is(err, errCanceled):
		return 3
	default:
		return 2
	}
}
