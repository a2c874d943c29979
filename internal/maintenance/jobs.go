package maintenance

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"workforce/backend/internal/session/lifecycle"
)

// Job names.
const (
	JobReconcile = "reconcile-sessions"
	JobPurge     = "purge-retention"
)

// AttemptPurger deletes login attempts older than a cutoff.
type AttemptPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Intervals configures the session jobs.
type Intervals struct {
	Reconcile        time.Duration
	Purge            time.Duration
	AttemptRetention time.Duration
}

// DefaultAttemptRetention applies when Intervals.AttemptRetention is not set.
const DefaultAttemptRetention = 90 * 24 * time.Hour

// SessionJobs returns the reconciliation job and the retention purge job.
func SessionJobs(engine *lifecycle.Engine, attempts AttemptPurger, iv Intervals) []Job {
	if iv.AttemptRetention <= 0 {
		iv.AttemptRetention = DefaultAttemptRetention
	}
	return []Job{
		{
			Name:  JobReconcile,
			Every: iv.Reconcile,
			Run: func(ctx context.Context) error {
				_, err := engine.Reconcile(ctx)
				return err
			},
		},
		{
			Name:  JobPurge,
			Every: iv.Purge,
			Run: func(ctx context.Context) error {
				var errs *multierror.Error
				if _, err := engine.PurgeOldSessions(ctx); err != nil {
					errs = multierror.Append(errs, err)
				}
				if _, err := attempts.PurgeOlderThan(ctx, engine.Now().Add(-iv.AttemptRetention)); err != nil {
					errs = multierror.Append(errs, err)
				}
				return errs.ErrorOrNil()
			},
		},
	}
}
