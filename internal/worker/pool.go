// Package worker runs a batch's jobs on a compute node under a bounded
// worker pool, one OS thread per job in flight (spec §4.3, §5).
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jade-hpc/jade/internal/model"
)

const defaultGracePeriod = 30 * time.Second

// Config configures a single batch's execution on a compute node.
type Config struct {
	BatchID          int
	Jobs             []model.Job // the batch's filtered job list, insertion order
	Group            model.SubmissionGroup
	OutputDir        string
	ComputeNodeNames []string
	PriorCompleted   map[int]model.JobResult // blockers already resolved in earlier batches (spec §4.3)
	Hooks            Hooks
	Canceller        CancelChecker
	GracePeriod      time.Duration
	Log              zerolog.Logger
}

// Pool runs Config.Jobs to completion, writing one result row per job.
type Pool struct {
	cfg     Config
	log     zerolog.Logger
	results *resultWriter

	mu        sync.Mutex
	cond      *sync.Cond
	completed map[int]model.JobResult
	pending   []model.Job
	running   map[int]bool
	cancelled bool

	cancelCh     chan struct{}
	cancelClosed bool
}

// New returns a Pool for cfg. It opens (or appends to) the batch's result
// CSV eagerly so partial runs are still durable if the process dies.
func New(cfg Config) (*Pool, error) {
	if cfg.Hooks == nil {
		cfg.Hooks = NoopHooks{}
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaultGracePeriod
	}
	rw, err := newResultWriter(cfg.OutputDir, cfg.BatchID)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:       cfg,
		log:       cfg.Log.With().Str("component", "worker").Int("batch_id", cfg.BatchID).Logger(),
		results:   rw,
		completed: make(map[int]model.JobResult, len(cfg.Jobs)),
		pending:   append([]model.Job(nil), cfg.Jobs...),
		running:   make(map[int]bool),
		cancelCh:  make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// Run executes node setup (if configured), then every job with
// parallelism bounded by Group.EffectiveParallelism, then node teardown.
// It returns the in-memory results collected this run (also durably
// flushed to the batch CSV as they land).
func (p *Pool) Run(ctx context.Context) ([]model.JobResult, error) {
	defer p.results.Close()

	pollInterval := time.Duration(p.cfg.Group.EffectivePollInterval()) * time.Second
	cancelCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	go p.pollCancellation(cancelCtx, pollInterval)

	if p.cfg.Group.NodeSetupCommand != "" {
		if err := p.runSynchronous(ctx, p.cfg.Group.NodeSetupCommand); err != nil {
			p.log.Error().Err(err).Msg("node setup failed, failing all jobs in batch")
			p.failAll(err)
			p.runTeardown(ctx)
			return p.snapshot(), nil
		}
	}

	parallelism := p.cfg.Group.EffectiveParallelism(runtime.NumCPU())
	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx)
		}()
	}
	wg.Wait()

	p.runTeardown(ctx)
	return p.snapshot(), nil
}

func (p *Pool) snapshot() []model.JobResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.JobResult, 0, len(p.completed))
	for _, r := range p.completed {
		out = append(out, r)
	}
	return out
}

// workerLoop repeatedly claims the next ready job and runs it until no
// pending jobs remain.
func (p *Pool) workerLoop(ctx context.Context) {
	for {
		job, ok := p.claimNext()
		if !ok {
			return
		}
		result := p.runJob(ctx, job)
		p.recordCompletion(job, result)
	}
}

// claimNext blocks until a ready job is available or no jobs remain
// pending (jobs still running on other workers do not keep it waiting),
// using the mutex+condvar pattern from spec §5. Before
// handing back a runnable job, it drains any jobs that must instead
// cascade-cancel per invariant I5 (a within-batch or prior-batch blocker
// failed and the job opted into cancel_on_blocking_job_failure).
func (p *Pool) claimNext() (model.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if cascaded := p.takeCascadedLocked(); len(cascaded) > 0 {
			p.cond.Broadcast()
			p.mu.Unlock()
			for _, c := range cascaded {
				p.writeCascadeResult(c.job, c.result)
			}
			p.mu.Lock()
			continue
		}

		for i, job := range p.pending {
			if p.isReadyLocked(job) {
				p.pending = append(p.pending[:i], p.pending[i+1:]...)
				p.running[job.ID] = true
				return job, true
			}
		}
		if len(p.pending) == 0 {
			return model.Job{}, false
		}
		p.cond.Wait()
	}
}

// isReadyLocked reports whether job's blockers are all resolved, either in
// this batch (p.completed) or in a prior batch (p.cfg.PriorCompleted).
// Caller must hold p.mu.
func (p *Pool) isReadyLocked(job model.Job) bool {
	for _, blockerID := range job.BlockedBy {
		if _, ok := p.completed[blockerID]; ok {
			continue
		}
		if _, ok := p.cfg.PriorCompleted[blockerID]; ok {
			continue
		}
		return false
	}
	return true
}

type cascadedJob struct {
	job    model.Job
	result model.JobResult
}

// takeCascadedLocked removes every ready, pending job that must
// cascade-cancel under I5 and records its synthetic canceled result in
// p.completed, iterating to a fixpoint so one cascade can unblock and
// trigger another (mirrors batcher.propagateCascade's cross-batch
// counterpart). Caller must hold p.mu.
func (p *Pool) takeCascadedLocked() []cascadedJob {
	var cascaded []cascadedJob
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(p.pending); i++ {
			job := p.pending[i]
			if !p.isReadyLocked(job) || !p.blockerFailedLocked(job) {
				continue
			}
			result := p.cancelResult(job)
			p.completed[job.ID] = result
			cascaded = append(cascaded, cascadedJob{job: job, result: result})
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			i--
			changed = true
		}
	}
	return cascaded
}

// blockerFailedLocked reports whether job opted into
// cancel_on_blocking_job_failure and at least one of its blockers (in this
// batch or a prior one) resolved to a non-zero return code or a
// cancellation (spec §4.3, invariant I5). Caller must hold p.mu.
func (p *Pool) blockerFailedLocked(job model.Job) bool {
	if !job.CancelOnBlockingJobFailure {
		return false
	}
	for _, blockerID := range job.BlockedBy {
		if r, ok := p.completed[blockerID]; ok && blockerFailed(r) {
			return true
		}
		if r, ok := p.cfg.PriorCompleted[blockerID]; ok && blockerFailed(r) {
			return true
		}
	}
	return false
}

func blockerFailed(r model.JobResult) bool {
	return r.Status == model.StatusCanceled || r.ReturnCode != 0
}

// writeCascadeResult durably records a cascade-canceled job's result. The
// job never entered p.running, so unlike recordCompletion there is nothing
// to remove from it.
func (p *Pool) writeCascadeResult(job model.Job, result model.JobResult) {
	if err := p.results.Write(result); err != nil {
		p.log.Error().Err(err).Int("job_id", job.ID).Msg("failed to write cascaded cancellation result row")
	}
	if err := p.cfg.Hooks.PostRun(context.Background(), job, result); err != nil {
		p.log.Warn().Err(err).Int("job_id", job.ID).Msg("post-run hook failed")
	}
}

func (p *Pool) recordCompletion(job model.Job, result model.JobResult) {
	p.mu.Lock()
	delete(p.running, job.ID)
	p.completed[job.ID] = result
	p.cond.Broadcast()
	p.mu.Unlock()

	if err := p.results.Write(result); err != nil {
		p.log.Error().Err(err).Int("job_id", job.ID).Msg("failed to write result row")
	}
	if err := p.cfg.Hooks.PostRun(context.Background(), job, result); err != nil {
		p.log.Warn().Err(err).Int("job_id", job.ID).Msg("post-run hook failed")
	}
}

// runJob launches one job's subprocess and waits for it, or honors a
// cancellation request observed before or during execution.
func (p *Pool) runJob(ctx context.Context, job model.Job) model.JobResult {
	p.mu.Lock()
	cancelled := p.cancelled
	p.mu.Unlock()
	if cancelled {
		return p.cancelResult(job)
	}

	if err := p.cfg.Hooks.PreRun(ctx, job); err != nil {
		p.log.Warn().Err(err).Int("job_id", job.ID).Msg("pre-run hook failed")
	}

	argv := strings.Fields(job.Command)
	if len(argv) == 0 {
		return p.errorResult(job, fmt.Errorf("job %q has an empty command", job.EffectiveName()))
	}

	stdoutPath, stderrPath, err := p.stdioPaths(job)
	if err != nil {
		return p.errorResult(job, err)
	}
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return p.errorResult(job, err)
	}
	defer stdout.Close()
	stderr, err := os.Create(stderrPath)
	if err != nil {
		return p.errorResult(job, err)
	}
	defer stderr.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = p.jobEnv(job)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return p.errorResult(job, fmt.Errorf("starting job %q: %w", job.EffectiveName(), err))
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		return p.finishedResult(job, err, start)
	case <-p.cancelCh:
		p.terminate(cmd, waitDone)
		return p.cancelResult(job)
	}
}

// terminate sends SIGTERM, then races GracePeriod against the process
// actually exiting, sending SIGKILL only if it hasn't exited by then (spec
// §4.3). Returns once the process has exited either way.
func (p *Pool) terminate(cmd *exec.Cmd, waitDone <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	timer := time.NewTimer(p.cfg.GracePeriod)
	defer timer.Stop()
	select {
	case <-waitDone:
		return
	case <-timer.C:
		_ = cmd.Process.Kill()
		<-waitDone
	}
}

func (p *Pool) finishedResult(job model.Job, waitErr error, start time.Time) model.JobResult {
	returnCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			returnCode = exitErr.ExitCode()
		} else {
			returnCode = -1
		}
	}
	return model.JobResult{
		Name:            job.EffectiveName(),
		JobID:           job.ID,
		ReturnCode:      returnCode,
		Status:          model.StatusFinished,
		ExecTimeSeconds: time.Since(start).Seconds(),
		CompletionTime:  time.Now(),
		BatchID:         p.cfg.BatchID,
		OutputDir:       p.cfg.OutputDir,
	}
}

func (p *Pool) cancelResult(job model.Job) model.JobResult {
	return model.JobResult{
		Name:           job.EffectiveName(),
		JobID:          job.ID,
		ReturnCode:     -1,
		Status:         model.StatusCanceled,
		CompletionTime: time.Now(),
		BatchID:        p.cfg.BatchID,
		OutputDir:      p.cfg.OutputDir,
	}
}

func (p *Pool) errorResult(job model.Job, err error) model.JobResult {
	p.log.Error().Err(err).Int("job_id", job.ID).Msg("job execution error")
	return model.JobResult{
		Name:           job.EffectiveName(),
		JobID:          job.ID,
		ReturnCode:     -1,
		Status:         model.StatusFinished,
		CompletionTime: time.Now(),
		BatchID:        p.cfg.BatchID,
		OutputDir:      p.cfg.OutputDir,
	}
}

func (p *Pool) stdioPaths(job model.Job) (stdout, stderr string, err error) {
	dir := filepath.Join(p.cfg.OutputDir, "job-stdio")
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return "", "", fmt.Errorf("creating %s: %w", dir, mkErr)
	}
	name := job.EffectiveName()
	return filepath.Join(dir, name+".o"), filepath.Join(dir, name+".e"), nil
}

func (p *Pool) jobEnv(job model.Job) []string {
	env := append(os.Environ(),
		"JADE_RUNTIME_OUTPUT="+p.cfg.OutputDir,
		"JADE_JOB_NAME="+job.EffectiveName(),
		"JADE_SUBMISSION_GROUP="+p.cfg.Group.Name,
		"JADE_OUTPUT_DIR="+p.cfg.OutputDir,
	)
	if len(p.cfg.ComputeNodeNames) > 0 {
		env = append(env, "JADE_COMPUTE_NODE_NAMES="+strings.Join(p.cfg.ComputeNodeNames, " "))
	}
	return env
}

// failAll records every job as a finished, non-zero-exit failure — used
// when node setup fails (spec §4.3: "non-zero exit aborts the batch; all
// jobs emit a failure result").
func (p *Pool) failAll(cause error) {
	p.mu.Lock()
	jobs := append([]model.Job(nil), p.pending...)
	p.pending = nil
	p.mu.Unlock()

	for _, job := range jobs {
		result := model.JobResult{
			Name:           job.EffectiveName(),
			JobID:          job.ID,
			ReturnCode:     -1,
			Status:         model.StatusFinished,
			CompletionTime: time.Now(),
			BatchID:        p.cfg.BatchID,
			OutputDir:      p.cfg.OutputDir,
		}
		p.mu.Lock()
		p.completed[job.ID] = result
		p.mu.Unlock()
		if err := p.results.Write(result); err != nil {
			p.log.Error().Err(err).Int("job_id", job.ID).Msg("failed to write setup-failure result row")
		}
	}
}

func (p *Pool) runSynchronous(ctx context.Context, command string) error {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	return cmd.Run()
}

// runTeardown runs Group.NodeTeardownCommand after the last worker
// finishes, even on cancellation; its failure is logged but not fatal
// (spec §4.3).
func (p *Pool) runTeardown(ctx context.Context) {
	if p.cfg.Group.NodeTeardownCommand == "" {
		return
	}
	if err := p.runSynchronous(ctx, p.cfg.Group.NodeTeardownCommand); err != nil {
		p.log.Warn().Err(err).Msg("node teardown command failed")
	}
}

// pollCancellation checks the cancellation flag every interval and, on
// transition to canceled, wakes every blocked worker so in-flight jobs
// observe the cancel request (spec §4.3).
func (p *Pool) pollCancellation(ctx context.Context, interval time.Duration) {
	if p.cfg.Canceller == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.cfg.Canceller.IsCancelled() {
				p.mu.Lock()
				p.cancelled = true
				if !p.cancelClosed {
					p.cancelClosed = true
					close(p.cancelCh)
				}
				p.cond.Broadcast()
				p.mu.Unlock()
				return
			}
		}
	}
}
