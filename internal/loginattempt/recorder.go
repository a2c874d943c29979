// Package loginattempt keeps the append-only audit trail of login attempts.
package loginattempt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workforce/backend/internal/loginattempt/domain"
	"workforce/backend/internal/loginattempt/repository"
	"workforce/backend/internal/telemetry"
	"workforce/backend/internal/telemetry/metrics"
)

// Recorder writes login attempts and answers audit queries.
// Record is best-effort: a failed write is logged and counted, never returned.
type Recorder struct {
	repo          repository.Repository
	metrics       *metrics.Auth
	events        telemetry.EventEmitter
	lookback      time.Duration
	warnThreshold int64
	now           func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMetrics records attempt outcomes and audit failures on m.
func WithMetrics(m *metrics.Auth) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithEvents publishes every announced attempt to e.
func WithEvents(e telemetry.EventEmitter) Option {
	return func(r *Recorder) { r.events = e }
}

// WithFailureWatch counts FAILED attempts for the same email over lookback after each
// failure and logs a warning once the count reaches threshold. Observation only.
func WithFailureWatch(lookback time.Duration, threshold int) Option {
	return func(r *Recorder) {
		r.lookback = lookback
		r.warnThreshold = int64(threshold)
	}
}

// WithClock sets the time source for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder returns a Recorder whose queries and purges run on repo.
func NewRecorder(repo repository.Repository, opts ...Option) *Recorder {
	r := &Recorder{
		repo:     repo,
		events:   telemetry.NoopEmitter{},
		lookback: 15 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a to tx, the login transaction's repository. ID and AttemptTime are
// filled in when empty. Returns whether the row was written.
func (r *Recorder) Record(ctx context.Context, tx repository.Repository, a *domain.Attempt) bool {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AttemptTime.IsZero() {
		a.AttemptTime = r.now().UTC()
	}
	logger := zerolog.Ctx(ctx)
	if err := tx.Create(ctx, a); err != nil {
		logger.Error().Err(err).
			Str("email", a.Email).
			Str("status", string(a.Status)).
			Msg("loginattempt: failed to record attempt")
		r.metrics.AuditWriteFailed(ctx)
		return false
	}

	if a.Status == domain.StatusFailed && r.warnThreshold > 0 {
		r.watchFailures(ctx, tx, a)
	}
	return true
}

func (r *Recorder) watchFailures(ctx context.Context, tx repository.Repository, a *domain.Attempt) {
	n, err := tx.CountFailuresSince(ctx, a.Email, a.AttemptTime.Add(-r.lookback))
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("loginattempt: count recent failures")
		return
	}
	r.metrics.RecentFailures(ctx, n)
	if n >= r.warnThreshold {
		zerolog.Ctx(ctx).Warn().
			Str("email", a.Email).
			Int64("failures", n).
			Dur("window", r.lookback).
			Msg("loginattempt: repeated login failures")
	}
}

// Announce counts and publishes an attempt once its transaction has committed.
func (r *Recorder) Announce(ctx context.Context, a *domain.Attempt) {
	r.metrics.LoginAttempt(ctx, string(a.Status))
	if r.events == nil {
		return
	}
	_ = r.events.Emit(ctx, &telemetry.SecurityEvent{
		Type:       telemetry.EventLoginAttempt,
		EmployeeID: a.EmployeeID,
		Email:      a.Email,
		Status:     string(a.Status),
		Reason:     a.FailureReason,
		DeviceID:   a.DeviceID,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
		OccurredAt: a.AttemptTime,
	})
}

// CountRecentFailures counts FAILED attempts for email within window. Read-only; no
// caller enforces on it.
func (r *Recorder) CountRecentFailures(ctx context.Context, email string, window time.Duration) (int64, error) {
	return r.repo.CountFailuresSince(ctx, email, r.now().UTC().Add(-window))
}

// PurgeOlderThan deletes attempts older than cutoff.
func (r *Recorder) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.metrics.Purged(ctx, "login_attempts", n)
	return n, nil
}

// List returns all attempts newest first.
func (r *Recorder) List(ctx context.Context, page domain.Page) ([]*domain.Attempt, error) {
	return r.repo.List(ctx, page)
}

// ListBlocked returns BLOCKED attempts newest first.
func (r *Recorder) ListBlocked(ctx context.Context, page domain.Page) ([]*domain.Attempt, error) {
	return r.repo.ListByStatus(ctx, domain.StatusBlocked, page)
}

// ListByEmployee returns one employee's attempts newest first.
func (r *Recorder) ListByEmployee(ctx context.Context, employeeID string, page domain.Page) ([]*domain.Attempt, error) {
	return r.repo.ListByEmployee(ctx, employeeID, page)
}

// CountBlocked counts BLOCKED attempts.
func (r *Recorder) CountBlocked(ctx context.Context) (int64, error) {
	return r.repo.CountByStatus(ctx, domain.StatusBlocked)
}
