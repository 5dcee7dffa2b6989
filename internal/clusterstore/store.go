// Package clusterstore implements JADE's single-shared-document cluster
// state, protected by an advisory file lock on the output directory (spec
// §2, §4.4, §5, §9).
package clusterstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/model"
)

// ErrLockTimeout is returned when the cluster lock cannot be acquired within
// the configured timeout (spec §4.4: "blocking, timeout = 10 min; on
// timeout log and abort").
var ErrLockTimeout = errors.New("clusterstore: timed out acquiring cluster lock")

const (
	clusterStateFile = "cluster_config.json"
	clusterLockFile  = "cluster_config.json.lock"
	cancellationFlag = "cancellation_flag"
)

// Store manages ClusterState persistence under the output directory's
// advisory lock.
type Store struct {
	outputDir string
	lock      *flock.Flock
	log       zerolog.Logger
}

// New returns a Store rooted at outputDir. It does not create outputDir;
// callers are expected to have already initialized the output layout
// (spec §6).
func New(outputDir string, log zerolog.Logger) *Store {
	return &Store{
		outputDir: outputDir,
		lock:      flock.New(filepath.Join(outputDir, clusterLockFile)),
		log:       log.With().Str("component", "clusterstore").Logger(),
	}
}

// Acquire blocks until the cluster lock is held or timeout elapses.
func (s *Store) Acquire(ctx context.Context, timeout time.Duration) error {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Error().Dur("timeout", timeout).Msg("timed out acquiring cluster lock")
			return ErrLockTimeout
		}
		return fmt.Errorf("clusterstore: acquiring lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	return nil
}

// Release gives up the cluster lock.
func (s *Store) Release() error {
	return s.lock.Unlock()
}

// Read loads the current ClusterState from disk. A missing file is not an
// error: callers create a fresh ClusterState via model.NewClusterState on
// first run.
func (s *Store) Read() (*model.ClusterState, error) {
	path := filepath.Join(s.outputDir, clusterStateFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("clusterstore: reading %s: %w", path, err)
	}
	var state model.ClusterState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("clusterstore: malformed cluster state (corruption): %w", err)
	}
	return &state, nil
}

// Write persists state atomically via temp-file-plus-rename (spec §4.2,
// §4.4, §5 — "Writes are total", never partial).
func (s *Store) Write(state *model.ClusterState) error {
	state.Version++
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("clusterstore: marshaling cluster state: %w", err)
	}

	path := filepath.Join(s.outputDir, clusterStateFile)
	tmp, err := os.CreateTemp(s.outputDir, ".cluster_config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("clusterstore: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("clusterstore: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("clusterstore: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("clusterstore: renaming into place: %w", err)
	}
	return nil
}

// SetCancelled creates the cancellation flag file — a one-way,
// missing-file-to-present-file transition observable without the lock
// (spec §4.3, §9).
func (s *Store) SetCancelled() error {
	path := filepath.Join(s.outputDir, cancellationFlag)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("clusterstore: creating cancellation flag: %w", err)
	}
	return f.Close()
}

// IsCancelled performs a lock-free stat of the cancellation flag.
func (s *Store) IsCancelled() bool {
	_, err := os.Stat(filepath.Join(s.outputDir, cancellationFlag))
	return err == nil
}

// OutputDir returns the managed output directory.
func (s *Store) OutputDir() string {
	return s.outputDir
}
