// Package poller runs a component's cycle function on a fixed cadence.
//
// Invariants:
// - Cycles run on the caller's goroutine, one after another; a cycle never
//   starts before the previous one returned.
// - The next tick is scheduled from the end of the previous cycle.
// - fsnotify events on watched files only shorten the wait; they never start
//   a cycle concurrently.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultInterval is the cadence when neither Interval nor Schedule is set.
const DefaultInterval = 2 * time.Second

// Options configures a polling loop
type Options struct {
	Name     string
	Interval time.Duration
	// Schedule is a cron expression or descriptor such as "@every 5s"; it
	// takes precedence over Interval.
	Schedule string
	// Watch lists files whose changes wake the loop early.
	Watch  []string
	Logger zerolog.Logger
}

// CycleFunc is one iteration of a loop. It must not block past ctx.
type CycleFunc func(ctx context.Context)

// constantDelay is a cron.Schedule that allows sub-second intervals.
type constantDelay time.Duration

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// ParseSchedule resolves the loop cadence from opts.
func ParseSchedule(opts Options) (cron.Schedule, error) {
	if opts.Schedule != "" {
		sched, err := cron.ParseStandard(opts.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid poll schedule %q: %w", opts.Schedule, err)
		}
		return sched, nil
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("invalid poll interval %s", opts.Interval)
	}
	if opts.Interval == 0 {
		return constantDelay(DefaultInterval), nil
	}
	return constantDelay(opts.Interval), nil
}

// Run calls cycle immediately and then once per tick until ctx is cancelled.
// It returns nil on cancellation and an error only for invalid options.
func Run(ctx context.Context, opts Options, cycle CycleFunc) error {
	sched, err := ParseSchedule(opts)
	if err != nil {
		return err
	}

	logger := opts.Logger.With().Str("loop", opts.Name).Logger()

	wake := make(chan struct{}, 1)
	if len(opts.Watch) > 0 {
		w, err := newWatcher(opts.Watch, wake, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("File watcher unavailable, polling only")
		} else {
			defer w.Close()
		}
	}

	logger.Info().Strs("watch", opts.Watch).Msg("Polling loop started")
	defer logger.Info().Msg("Polling loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		cycle(ctx)

		timer := time.NewTimer(time.Until(sched.Next(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-wake:
			timer.Stop()
		}
	}
}
