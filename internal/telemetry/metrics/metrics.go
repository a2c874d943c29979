// Package metrics defines the OpenTelemetry instruments of the authentication core.
package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "workforce/auth"

// Auth records authentication and session lifecycle metrics. A nil *Auth records nothing.
type Auth struct {
	loginAttempts      metric.Int64Counter
	loginDuration      metric.Float64Histogram
	auditWriteFailures metric.Int64Counter
	recentFailures     metric.Int64Histogram
	sessionsExpired    metric.Int64Counter
	sessionsTerminated metric.Int64Counter
	rowsPurged         metric.Int64Counter
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Auth, error) {
	var (
		a    Auth
		errs *multierror.Error
		err  error
	)
	a.loginAttempts, err = meter.Int64Counter("auth.login.attempts",
		metric.WithDescription("Login attempts by outcome"))
	errs = multierror.Append(errs, err)
	a.loginDuration, err = meter.Float64Histogram("auth.login.duration",
		metric.WithDescription("Login call latency"), metric.WithUnit("s"))
	errs = multierror.Append(errs, err)
	a.auditWriteFailures, err = meter.Int64Counter("auth.audit.write_failures",
		metric.WithDescription("Login attempt rows that could not be persisted"))
	errs = multierror.Append(errs, err)
	a.recentFailures, err = meter.Int64Histogram("auth.login.recent_failures",
		metric.WithDescription("Failed logins for the same email within the lookback window, observed after each failure"))
	errs = multierror.Append(errs, err)
	a.sessionsExpired, err = meter.Int64Counter("auth.sessions.expired",
		metric.WithDescription("Sessions moved to EXPIRED by guard"))
	errs = multierror.Append(errs, err)
	a.sessionsTerminated, err = meter.Int64Counter("auth.sessions.terminated",
		metric.WithDescription("Sessions ended by logout or force logout"))
	errs = multierror.Append(errs, err)
	a.rowsPurged, err = meter.Int64Counter("auth.retention.purged",
		metric.WithDescription("Rows removed by the retention sweep"))
	errs = multierror.Append(errs, err)

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &a, nil
}

// NewGlobal creates the instruments on the global MeterProvider.
func NewGlobal() (*Auth, error) {
	return New(otel.Meter(meterName))
}

// LoginAttempt counts one login outcome (SUCCESS, BLOCKED, FAILED).
func (a *Auth) LoginAttempt(ctx context.Context, status string) {
	if a == nil {
		return
	}
	a.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// LoginDuration records how long one login call took.
func (a *Auth) LoginDuration(ctx context.Context, d time.Duration, status string) {
	if a == nil {
		return
	}
	a.loginDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// AuditWriteFailed counts a login attempt row that was dropped.
func (a *Auth) AuditWriteFailed(ctx context.Context) {
	if a == nil {
		return
	}
	a.auditWriteFailures.Add(ctx, 1)
}

// RecentFailures observes the failure count for one email. Signal only; nothing enforces on it.
func (a *Auth) RecentFailures(ctx context.Context, n int64) {
	if a == nil {
		return
	}
	a.recentFailures.Record(ctx, n)
}

// SessionsExpired counts n sessions expired by reason (inactivity, rollover).
func (a *Auth) SessionsExpired(ctx context.Context, reason string, n int64) {
	if a == nil || n <= 0 {
		return
	}
	a.sessionsExpired.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
}

// SessionsTerminated counts n sessions moved to status (LOGGED_OUT, FORCE_LOGOUT).
func (a *Auth) SessionsTerminated(ctx context.Context, status string, n int64) {
	if a == nil || n <= 0 {
		return
	}
	a.sessionsTerminated.Add(ctx, n, metric.WithAttributes(attribute.String("status", status)))
}

// Purged counts n rows of kind (sessions, login_attempts) removed by retention.
func (a *Auth) Purged(ctx context.Context, kind string, n int64) {
	if a == nil || n <= 0 {
		return
	}
	a.rowsPurged.Add(ctx, n, metric.WithAttributes(attribute.String("kind", kind)))
}
