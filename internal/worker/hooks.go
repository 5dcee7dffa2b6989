package worker

import (
	"context"

	"github.com/jade-hpc/jade/internal/model"
)

// Hooks is the opaque pre/post execution extension point a job's Ext
// payload may route into (spec §4.3).
type Hooks interface {
	PreRun(ctx context.Context, job model.Job) error
	PostRun(ctx context.Context, job model.Job, result model.JobResult) error
}

// NoopHooks is the default Hooks implementation when no extension is wired.
type NoopHooks struct{}

func (NoopHooks) PreRun(context.Context, model.Job) error { return nil }

func (NoopHooks) PostRun(context.Context, model.Job, model.JobResult) error { return nil }

// CancelChecker reports whether a cancellation request is in effect. It is
// polled lock-free (spec §4.3, §5); clusterstore.Store satisfies it.
type CancelChecker interface {
	IsCancelled() bool
}
