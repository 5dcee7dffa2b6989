package model

import "time"

// ResultStatus is the terminal state a Job reaches (spec §3, I4, P2).
type ResultStatus string

const (
	StatusFinished ResultStatus = "finished"
	StatusMissing  ResultStatus = "missing"
	StatusCanceled ResultStatus = "canceled"
)

// JobResult is a single append-only record of a job reaching a terminal
// state (spec §3, §6 — CSV column order must match ResultCSVHeader).
type JobResult struct {
	Name            string       `json:"name"`
	JobID           int          `json:"job_id"`
	ReturnCode      int          `json:"return_code"`
	Status          ResultStatus `json:"status"`
	ExecTimeSeconds float64      `json:"exec_time_s"`
	CompletionTime  time.Time    `json:"completion_time"`
	BatchID         int          `json:"batch_id"`
	HPCJobID        string       `json:"hpc_job_id"`
	OutputDir       string       `json:"output_dir"`
}

// ResultCSVHeader is the mandated column order for per-batch result CSVs
// (spec §6).
var ResultCSVHeader = []string{
	"name", "job_id", "return_code", "status", "exec_time_s",
	"completion_time", "batch_id", "hpc_job_id", "output_dir",
}
