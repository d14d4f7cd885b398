// Package scheduler owns every periodic trigger (spec.md §4.10), replacing
// the teacher's scattered time.Ticker loops with the pack's gocron/v2
// scheduler (grounded on ClusterCockpit-cc-backend's taskManager package,
// which registers one gocron job per background service). Each trigger
// runs in its own context and is single-instance: gocron's singleton mode
// skips a firing if the previous one is still executing, matching the
// spec's "jobs never overlap themselves" requirement. Activity-window
// gating is chosen per job at registration (RegisterInterval with a
// non-nil location) and checked by the scheduler at fire time; daily jobs
// are never gated, since the daily cleanup and scoring jobs deliberately
// run outside the window.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/geo"
)

// Scheduler wraps a gocron.Scheduler, adding activity-window gating and
// structured logging around each job.
type Scheduler struct {
	s   gocron.Scheduler
	log zerolog.Logger
}

// New builds a Scheduler. Call Start to begin firing registered jobs.
func New(log zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	return &Scheduler{s: s, log: log}, nil
}

// Start begins firing every registered job.
func (sch *Scheduler) Start() { sch.s.Start() }

// Shutdown stops the scheduler, waiting for in-flight jobs to finish.
func (sch *Scheduler) Shutdown() error { return sch.s.Shutdown() }

func (sch *Scheduler) wrap(name string, fn func(ctx context.Context)) func() {
	return func() {
		ctx := context.Background()
		start := time.Now()
		fn(ctx)
		sch.log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job cycle finished")
	}
}

// gatedWrap only runs fn when loc is currently inside its daily activity
// window, per spec.md §4.10 ("gated by the activity-window check evaluated
// at the job's local zone at fire time").
func (sch *Scheduler) gatedWrap(name string, loc *geo.Location, fn func(ctx context.Context)) func() {
	return func() {
		if !loc.InActivityWindow(loc.Now()) {
			sch.log.Debug().Str("job", name).Msg("skipped, outside activity window")
			return
		}
		ctx := context.Background()
		start := time.Now()
		fn(ctx)
		sch.log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job cycle finished")
	}
}

// RegisterInterval registers a job firing every interval. When loc is
// non-nil the firing is gated to the location's activity window; pass nil
// for jobs meant to run around the clock (e.g. a heartbeat).
func (sch *Scheduler) RegisterInterval(name string, interval time.Duration, loc *geo.Location, fn func(ctx context.Context)) error {
	var task func()
	if loc != nil {
		task = sch.gatedWrap(name, loc, fn)
	} else {
		task = sch.wrap(name, fn)
	}

	_, err := sch.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("registering job %s: %w", name, err)
	}
	return nil
}

// RegisterDaily registers a job firing once per day at hour:minute:second
// in the process's local time zone (gocron's default location, as New sets
// no other), ungated — used for the scoring and retention jobs that deliberately
// run outside the activity window.
func (sch *Scheduler) RegisterDaily(name string, hour, minute, second int, fn func(ctx context.Context)) error {
	_, err := sch.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), uint(second)))),
		gocron.NewTask(sch.wrap(name, fn)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("registering daily job %s: %w", name, err)
	}
	return nil
}
