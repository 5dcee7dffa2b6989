package clusterstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jade-hpc/jade/internal/model"
)

// resultsDir is where per-batch staging CSVs live (spec §6).
const resultsDir = "results"

// DrainResultFiles reads every file in results/, parses its rows, and
// deletes the source CSV after a successful read; rows already present in
// completed_results are skipped by the caller (ClusterState.AppendResult),
// not here. This is the batch-CSV-to-cluster-state handoff described in
// spec §4.4 and the single-writer/single-drainer discipline of §5.
func (s *Store) DrainResultFiles() ([]model.JobResult, error) {
	dir := filepath.Join(s.outputDir, resultsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("clusterstore: listing %s: %w", dir, err)
	}

	var drained []model.JobResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		results, err := readResultCSV(path)
		if err != nil {
			return drained, fmt.Errorf("clusterstore: reading %s: %w", path, err)
		}
		drained = append(drained, results...)
		if err := os.Remove(path); err != nil {
			return drained, fmt.Errorf("clusterstore: removing drained %s: %w", path, err)
		}
	}
	return drained, nil
}

func readResultCSV(path string) ([]model.JobResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// First row is the mandated header (spec §6); skip it.
	results := make([]model.JobResult, 0, len(rows)-1)
	for _, row := range rows[1:] {
		result, err := parseResultRow(row)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func parseResultRow(row []string) (model.JobResult, error) {
	if len(row) != len(model.ResultCSVHeader) {
		return model.JobResult{}, fmt.Errorf("result row has %d columns, want %d", len(row), len(model.ResultCSVHeader))
	}
	jobID, err := strconv.Atoi(row[1])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing job_id: %w", err)
	}
	returnCode, err := strconv.Atoi(row[2])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing return_code: %w", err)
	}
	execTime, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing exec_time_s: %w", err)
	}
	batchID, err := strconv.Atoi(row[6])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing batch_id: %w", err)
	}
	completionTime, err := time.Parse(time.RFC3339Nano, row[5])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing completion_time: %w", err)
	}
	return model.JobResult{
		Name:            row[0],
		JobID:           jobID,
		ReturnCode:      returnCode,
		Status:          model.ResultStatus(row[3]),
		ExecTimeSeconds: execTime,
		CompletionTime:  completionTime,
		BatchID:         batchID,
		HPCJobID:        row[7],
		OutputDir:       row[8],
	}, nil
}
