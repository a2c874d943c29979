// Package lifecycle owns the session state machine: ACTIVE moves to EXPIRED, LOGGED_OUT or
// FORCE_LOGOUT and never back. It validates tokens against live sessions and runs the
// periodic reconciliation and retention jobs.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"workforce/backend/internal/security"
	"workforce/backend/internal/session/domain"
	"workforce/backend/internal/session/repository"
	"workforce/backend/internal/telemetry/metrics"
)

// ErrSessionInvalid is returned when a token does not map to a live ACTIVE session.
var ErrSessionInvalid = errors.New("session is invalid or expired")

const (
	DefaultInactivityTimeout = 8 * time.Hour
	DefaultSessionRetention  = 30 * 24 * time.Hour
)

// Config holds the expiry rules.
type Config struct {
	// InactivityTimeout expires a session idle for longer than this.
	InactivityTimeout time.Duration
	// Location decides calendar days for the rollover rule. Nil means time.Local.
	Location *time.Location
	// Retention is how long terminal sessions are kept before PurgeOldSessions deletes them.
	Retention time.Duration
}

// Engine applies the expiry rules to sessions.
type Engine struct {
	sessions repository.Repository
	tokens   *security.TokenCodec
	cfg      Config
	metrics  *metrics.Auth
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics counts expired and purged sessions on m.
func WithMetrics(m *metrics.Auth) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine. sessions is used outside transactions (validation and the
// background jobs); login passes its own transactional repository to ExpireIfStale.
func NewEngine(sessions repository.Repository, tokens *security.TokenCodec, cfg Config, opts ...Option) *Engine {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultInactivityTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultSessionRetention
	}
	e := &Engine{sessions: sessions, tokens: tokens, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// StaleReason reports whether s fails the inactivity or the rollover guard at now.
func (e *Engine) StaleReason(s *domain.Session, now time.Time) (domain.ExpiryReason, bool) {
	if s.IdleTooLong(now, e.cfg.InactivityTimeout) {
		return domain.ExpiryInactivity, true
	}
	if s.StartedBefore(domain.StartOfDay(now, e.cfg.Location)) {
		return domain.ExpiryRollover, true
	}
	return "", false
}

// ExpireIfStale moves s to EXPIRED through sessions when a guard fails. Returns whether the
// session is no longer ACTIVE afterwards.
func (e *Engine) ExpireIfStale(ctx context.Context, sessions repository.Repository, s *domain.Session, now time.Time) (bool, error) {
	if !s.Active() {
		return true, nil
	}
	reason, stale := e.StaleReason(s, now)
	if !stale {
		return false, nil
	}
	if _, err := sessions.Terminate(ctx, s.ID, domain.StatusExpired, now); err != nil {
		return false, fmt.Errorf("expire session %s: %w", s.ID, err)
	}
	zerolog.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("employee_id", s.EmployeeID).
		Str("reason", string(reason)).
		Msg("lifecycle: session expired")
	e.metrics.SessionsExpired(ctx, string(reason), 1)
	return true, nil
}

// Validate verifies token and checks that it maps to an ACTIVE session passing both
// guards. A stale session is expired on the spot. Success advances last activity.
func (e *Engine) Validate(ctx context.Context, token string) (*security.Claims, *domain.Session, error) {
	claims, err := e.tokens.Verify(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	hash := security.HashToken(token)
	s, err := e.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if s == nil || !s.Active() || s.EmployeeID != claims.EmployeeID {
		return nil, nil, ErrSessionInvalid
	}

	now := e.now()
	expired, err := e.ExpireIfStale(ctx, e.sessions, s, now)
	if err != nil {
		return nil, nil, err
	}
	if expired {
		return nil, nil, ErrSessionInvalid
	}

	touched, err := e.sessions.Touch(ctx, hash, now)
	if err != nil {
		return nil, nil, err
	}
	if !touched {
		// terminated between the read and the touch
		return nil, nil, ErrSessionInvalid
	}
	if now.After(s.LastActivityTime) {
		s.LastActivityTime = now
	}
	return claims, s, nil
}

// IsValid reports whether token maps to a live session. Store errors count as invalid.
func (e *Engine) IsValid(ctx context.Context, token string) bool {
	_, _, err := e.Validate(ctx, token)
	if err != nil && !errors.Is(err, ErrSessionInvalid) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("lifecycle: validate session")
	}
	return err == nil
}

// ReconcileResult counts the sessions one Reconcile run expired per guard.
type ReconcileResult struct {
	Inactive   int64
	RolledOver int64
}

// Reconcile applies the inactivity guard and then the rollover guard to every ACTIVE
// session. Both passes run even if the first fails.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileResult, error) {
	now := e.now()
	var (
		res  ReconcileResult
		errs *multierror.Error
	)

	n, err := e.sessions.ExpireIdleSince(ctx, now.Add(-e.cfg.InactivityTimeout), now)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("expire idle sessions: %w", err))
	} else {
		res.Inactive = n
		e.metrics.SessionsExpired(ctx, string(domain.ExpiryInactivity), n)
	}

	n, err = e.sessions.ExpireLoggedInBefore(ctx, domain.StartOfDay(now, e.cfg.Location), now)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("expire previous-day sessions: %w", err))
	} else {
		res.RolledOver = n
		e.metrics.SessionsExpired(ctx, string(domain.ExpiryRollover), n)
	}

	if res.Inactive+res.RolledOver > 0 {
		zerolog.Ctx(ctx).Info().
			Int64("inactive", res.Inactive).
			Int64("rolled_over", res.RolledOver).
			Msg("lifecycle: reconciled sessions")
	}
	return res, errs.ErrorOrNil()
}

// PurgeOldSessions deletes terminal sessions that ended more than the retention period ago.
func (e *Engine) PurgeOldSessions(ctx context.Context) (int64, error) {
	n, err := e.sessions.PurgeTerminalOlderThan(ctx, e.now().Add(-e.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	e.metrics.Purged(ctx, "sessions", n)
	if n > 0 {
		zerolog.Ctx(ctx).Info().Int64("removed", n).Msg("lifecycle: purged old sessions")
	}
	return n, nil
}
