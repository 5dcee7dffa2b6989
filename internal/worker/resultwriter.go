package worker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jade-hpc/jade/internal/model"
)

// resultWriter appends JobResult rows to results/results_batch_<id>.csv,
// flushing after every row (spec §4.3: "append-open, one row per
// completion, flushed after each row" — this is O2's durability guarantee).
type resultWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func newResultWriter(outputDir string, batchID int) (*resultWriter, error) {
	dir := filepath.Join(outputDir, "results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("worker: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("results_batch_%d.csv", batchID))

	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("worker: opening %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(model.ResultCSVHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("worker: writing header to %s: %w", path, err)
		}
		w.Flush()
	}
	return &resultWriter{file: f, writer: w}, nil
}

func (rw *resultWriter) Write(r model.JobResult) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	row := []string{
		r.Name,
		strconv.Itoa(r.JobID),
		strconv.Itoa(r.ReturnCode),
		string(r.Status),
		strconv.FormatFloat(r.ExecTimeSeconds, 'f', -1, 64),
		r.CompletionTime.Format(time.RFC3339Nano),
		strconv.Itoa(r.BatchID),
		r.HPCJobID,
		r.OutputDir,
	}
	if err := rw.writer.Write(row); err != nil {
		return fmt.Errorf("worker: writing result row for job %d: %w", r.JobID, err)
	}
	rw.writer.Flush()
	return rw.writer.Error()
}

func (rw *resultWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.writer.Flush()
	return rw.file.Close()
}
