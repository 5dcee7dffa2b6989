package model

// BatchSpec is the ephemeral description of a batch handed to the
// HpcAdapter for submission (spec §3).
type BatchSpec struct {
	BatchID         int    `json:"batch_id"`
	JobIDs          []int  `json:"job_ids"`
	SubmissionGroup string `json:"submission_group"`
	ConfigFilePath  string `json:"config_file_path"`
}
