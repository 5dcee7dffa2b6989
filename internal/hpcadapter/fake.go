package hpcadapter

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/model"
)

// fakeJob tracks a locally-run "scheduled" batch.
type fakeJob struct {
	done bool
	cmd  *exec.Cmd
}

// fakeAdapter runs submitted scripts as local subprocesses immediately,
// standing in for a real scheduler in local development and tests
// (hpc_type = "fake", spec §6).
type fakeAdapter struct {
	mu   sync.Mutex
	jobs map[string]*fakeJob
	log  zerolog.Logger
}

// NewFakeAdapter returns an Adapter that executes batches locally without a
// real scheduler.
func NewFakeAdapter(log zerolog.Logger) Adapter {
	return &fakeAdapter{
		jobs: make(map[string]*fakeJob),
		log:  log.With().Str("component", "hpcadapter.fake").Logger(),
	}
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) RenderSubmitScript(spec model.BatchSpec, group model.SubmissionGroup, outputDir string, noDistributedSubmitter bool) (string, error) {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString(jobRunnerInvocation(spec, outputDir, noDistributedSubmitter))
	return writeScript(outputDir, spec.BatchID, b.String())
}

func (a *fakeAdapter) Submit(ctx context.Context, scriptPath string) (string, error) {
	id := uuid.NewString()
	cmd := exec.CommandContext(context.Background(), "/bin/bash", scriptPath)

	a.mu.Lock()
	a.jobs[id] = &fakeJob{cmd: cmd}
	a.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("hpcadapter: starting fake job %s: %w", scriptPath, err)
	}

	go func() {
		cmd.Wait()
		a.mu.Lock()
		if j, ok := a.jobs[id]; ok {
			j.done = true
		}
		a.mu.Unlock()
	}()

	a.log.Debug().Str("hpc_job_id", id).Str("script", scriptPath).Msg("fake adapter started batch")
	return id, nil
}

func (a *fakeAdapter) Status(ctx context.Context, hpcJobID string) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	j, ok := a.jobs[hpcJobID]
	if !ok {
		return StatusUnknown, nil
	}
	if j.done {
		return StatusComplete, nil
	}
	return StatusRunning, nil
}

func (a *fakeAdapter) Cancel(ctx context.Context, hpcJobID string) error {
	a.mu.Lock()
	j, ok := a.jobs[hpcJobID]
	a.mu.Unlock()
	if !ok || j.cmd.Process == nil {
		return nil
	}
	return j.cmd.Process.Kill()
}

// ListActiveIDs ignores prefix: the fake adapter only ever tracks jobs from
// this process's own runs, so there is nothing else a sweep could wrongly
// catch.
func (a *fakeAdapter) ListActiveIDs(ctx context.Context, prefix string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ids []string
	for id, j := range a.jobs {
		if !j.done {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
