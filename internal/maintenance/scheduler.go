// Package maintenance runs the periodic session jobs: hourly reconciliation and the daily
// retention purge. Each job has its own ticker so a slow purge never delays reconciliation.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Job is one periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler runs jobs on independent tickers.
type Scheduler struct {
	jobs []Job
}

// NewScheduler returns a Scheduler for jobs. Jobs with a non-positive interval are rejected by Run.
func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run executes every job once right away and then on its interval until ctx is done.
// A failing run is logged and retried on the next tick. Returns nil after ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.jobs {
		if j.Every <= 0 {
			return fmt.Errorf("maintenance: job %q has no interval", j.Name)
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		g.Go(func() error {
			return loop(ctx, j)
		})
	}
	return g.Wait()
}

func loop(ctx context.Context, j Job) error {
	ticker := time.NewTicker(j.Every)
	defer ticker.Stop()

	logger := zerolog.Ctx(ctx).With().Str("job", j.Name).Logger()
	logger.Info().Dur("every", j.Every).Msg("maintenance: job scheduled")
	for {
		runJob(logger.WithContext(ctx), j)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runJob(ctx context.Context, j Job) {
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("maintenance: job failed")
		return
	}
	zerolog.Ctx(ctx).Debug().Dur("took", time.Since(start)).Msg("maintenance: job finished")
}

// RunOnce executes every job a single time in order and returns all failures together.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs *multierror.Error
	for _, j := range s.jobs {
		if err := j.Run(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", j.Name, err))
		}
	}
	return errs.ErrorOrNil()
}
