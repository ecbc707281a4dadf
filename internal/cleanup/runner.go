package cleanup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 6h"

// ErrorSink receives failures of background runs.
type ErrorSink func(ctx context.Context, err error)

// Runner executes a Job in the background: once at start, then on a cron
// schedule. A run that would overlap a running one is skipped.
type Runner struct {
	job      *Job
	schedule string
	sink     ErrorSink
	log      logging.Logger

	cron    *cron.Cron
	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewRunner(job *Job, schedule string, sink ErrorSink, log logging.Logger) *Runner {
	if log == nil {
		log = logging.Nop{}
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	r := &Runner{job: job, schedule: schedule, sink: sink, log: log.With("component", "cleanup-runner")}
	if r.sink == nil {
		r.sink = func(ctx context.Context, err error) {
			r.log.Warn(ctx, "cleanup failed", "err", err)
		}
	}
	return r
}

// Start schedules the job and kicks off the first run. It returns at once.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, func() { r.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("cleanup schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.RunOnce(ctx)
	}()

	r.log.Info(ctx, "cleanup scheduled", "schedule", r.schedule)
	return nil
}

// RunOnce runs the job unless a run is already in progress and reports
// whether it ran. Errors go to the sink.
func (r *Runner) RunOnce(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug(ctx, "cleanup skipped: already running")
		return false
	}
	defer r.running.Store(false)

	log := r.log.With("run_id", uuid.NewString())
	log.Debug(ctx, "cleanup started")

	n, err := r.job.Run(ctx)
	if err != nil {
		r.sink(ctx, err)
		return true
	}
	log.Debug(ctx, "cleanup finished", "deleted", n)
	return true
}

// Stop cancels in-flight runs and waits for them to return.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.wg.Wait()
}
