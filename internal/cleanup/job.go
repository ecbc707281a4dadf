// Package cleanup removes store files whose week has left the retention
// horizon. It runs opportunistically: a failure only delays the removal
// until the next run.
package cleanup

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/dmitrijs2005/waffle/internal/week"
)

var weekPrefix = regexp.MustCompile(`^(\d{4}-W\d{2})_`)

// Job deletes expired files in one batched write.
type Job struct {
	store store.Store
	clock *week.Clock
	now   func() time.Time
	log   logging.Logger
}

type Option func(*Job)

// WithNow replaces the wall clock the horizon is measured from.
func WithNow(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

func NewJob(s store.Store, clock *week.Clock, log logging.Logger, opts ...Option) *Job {
	if log == nil {
		log = logging.Nop{}
	}
	j := &Job{store: s, clock: clock, now: time.Now, log: log.With("component", "cleanup")}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Plan returns the keys whose week prefix is outside the horizon around
// current. Keys without a week prefix are never selected.
func Plan(keys []string, current week.ID) []string {
	var expired []string
	for _, k := range keys {
		m := weekPrefix.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		if !week.WithinHorizon(week.ID(m[1]), current) {
			expired = append(expired, k)
		}
	}
	return expired
}

// Current is the week the job measures the horizon from.
func (j *Job) Current() week.ID {
	return j.clock.Current(j.now())
}

// Run deletes every expired file and returns how many were removed. No
// write is issued when nothing qualifies.
func (j *Job) Run(ctx context.Context) (int, error) {
	snap, err := j.store.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup read: %w", err)
	}

	current := j.Current()
	expired := Plan(snap.Keys(), current)
	if len(expired) == 0 {
		j.log.Debug(ctx, "nothing to clean up", "week", current)
		return 0, nil
	}

	m := store.Mutations{}
	for _, k := range expired {
		m.Delete(k)
	}
	if err := j.store.Write(ctx, m); err != nil {
		return 0, fmt.Errorf("cleanup write: %w", err)
	}

	j.log.Info(ctx, "expired files removed", "week", current, "count", len(expired))
	return len(expired), nil
}
