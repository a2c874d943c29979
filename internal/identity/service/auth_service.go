// Package service implements employee authentication on top of the session lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	empdomain "workforce/backend/internal/employee/domain"
	"workforce/backend/internal/loginattempt"
	attdomain "workforce/backend/internal/loginattempt/domain"
	"workforce/backend/internal/security"
	sessdomain "workforce/backend/internal/session/domain"
	"workforce/backend/internal/session/lifecycle"
	sessionrepo "workforce/backend/internal/session/repository"
	"workforce/backend/internal/store"
	"workforce/backend/internal/telemetry"
	"workforce/backend/internal/telemetry/metrics"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrDuplicateSession   = errors.New(attdomain.ReasonDuplicate)
	ErrSessionInvalid     = lifecycle.ErrSessionInvalid
	ErrPrincipalNotFound  = errors.New("employee not found")
	// ErrCurrentPasswordIncorrect is an ErrInvalidCredentials raised by ChangePassword.
	ErrCurrentPasswordIncorrect = fmt.Errorf("%w: current password is incorrect", ErrInvalidCredentials)
)

// Password rule messages that are not format rules.
const (
	msgConfirmMismatch = "New password and confirm password do not match"
	msgPasswordReuse   = "New password cannot be the same as current password"
	msgExpiryWarning   = "Your password will expire in %d days. Please update your password"
)

// TokenType is the scheme clients send the token back with.
const TokenType = "Bearer"

// Config holds the password-age rules and the zone that decides calendar days.
type Config struct {
	PasswordMaxAgeDays int
	PasswordWarnDays   int
	Location           *time.Location
}

// LoginInput is one login request. DeviceID, IPAddress and UserAgent are recorded as given.
type LoginInput struct {
	Email     string
	Password  string
	DeviceID  string
	IPAddress string
	UserAgent string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	ExpiresIn time.Duration
	SessionID string
	Employee  *empdomain.Employee

	PasswordExpired         bool
	DaysUntilPasswordExpiry *int
	PasswordExpiryWarning   string
}

// PasswordChangeResult reports the new password dates.
type PasswordChangeResult struct {
	LastPasswordChangeDate time.Time
	NextPasswordChangeDate time.Time
	DaysUntilExpiry        int
}

// AuthService implements login, logout, forced logout and password management over
// the single-active-session rule.
type AuthService struct {
	store     store.Store
	lifecycle *lifecycle.Engine
	tokens    *security.TokenCodec
	hasher    *security.Hasher
	policy    security.PasswordPolicy
	attempts  *loginattempt.Recorder
	events    telemetry.EventEmitter
	metrics   *metrics.Auth
	cfg       Config
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithEvents publishes logout and forced-logout events to e.
func WithEvents(e telemetry.EventEmitter) Option {
	return func(s *AuthService) { s.events = e }
}

// WithMetrics records login latency and terminated sessions on m.
func WithMetrics(m *metrics.Auth) Option {
	return func(s *AuthService) { s.metrics = m }
}

// WithPasswordPolicy replaces the default password format policy.
func WithPasswordPolicy(p security.PasswordPolicy) Option {
	return func(s *AuthService) { s.policy = p }
}

// NewAuthService returns an AuthService. The lifecycle engine is also the clock.
func NewAuthService(
	st store.Store,
	engine *lifecycle.Engine,
	tokens *security.TokenCodec,
	hasher *security.Hasher,
	attempts *loginattempt.Recorder,
	cfg Config,
	opts ...Option,
) *AuthService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &AuthService{
		store:     st,
		lifecycle: engine,
		tokens:    tokens,
		hasher:    hasher,
		policy:    security.DefaultPasswordPolicy(),
		attempts:  attempts,
		events:    telemetry.NoopEmitter{},
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credentials and opens the employee's only ACTIVE session.
// Every call writes exactly one login attempt row. Unknown email and wrong password both
// return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	start := s.lifecycle.Now()
	in.Email = strings.TrimSpace(in.Email)
	attempt := &attdomain.Attempt{
		Email:     in.Email,
		DeviceID:  in.DeviceID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}
	res, err := s.login(ctx, in, attempt)
	if attempt.Status != "" {
		s.attempts.Announce(ctx, attempt)
		s.metrics.LoginDuration(ctx, s.lifecycle.Now().Sub(start), string(attempt.Status))
	}
	return res, err
}

func (s *AuthService) login(ctx context.Context, in LoginInput, attempt *attdomain.Attempt) (*LoginResult, error) {
	logger := zerolog.Ctx(ctx)
	emp, err := s.store.Employees().GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		s.hasher.Burn(in.Password)
		logger.Warn().Str("email", in.Email).Msg("auth: login for unknown email")
		return nil, s.reject(ctx, attempt, attdomain.StatusFailed, attdomain.ReasonUnknownEmail, ErrInvalidCredentials)
	}
	attempt.EmployeeID = emp.ID
	if !s.hasher.Matches(emp.PasswordHash, in.Password) {
		logger.Warn().Str("email", in.Email).Msg("auth: invalid password")
		return nil, s.reject(ctx, attempt, attdomain.StatusFailed, attdomain.ReasonInvalidPassword, ErrInvalidCredentials)
	}
	if !emp.Active {
		logger.Warn().Str("email", in.Email).Msg("auth: inactive employee attempted login")
		return nil, s.reject(ctx, attempt, attdomain.StatusFailed, attdomain.ReasonAccountInactive, ErrAccountInactive)
	}

	// A unique violation means another login for the same employee committed between our
	// check and our insert. The second pass sees that session and reports it.
	res, err := s.openSession(ctx, emp.ID, in, attempt, false)
	if errors.Is(err, sessionrepo.ErrActiveSessionExists) {
		logger.Debug().Str("employee_id", emp.ID).Msg("auth: concurrent login detected, retrying")
		res, err = s.openSession(ctx, emp.ID, in, attempt, true)
	}
	return res, err
}

// reject writes a FAILED or BLOCKED attempt on its own and returns cause.
func (s *AuthService) reject(ctx context.Context, attempt *attdomain.Attempt, status attdomain.Status, reason string, cause error) error {
	attempt.Status = status
	attempt.FailureReason = reason
	attempt.AttemptTime = s.lifecycle.Now().UTC()
	s.attempts.Record(ctx, s.store.LoginAttempts(), attempt)
	return cause
}

// openSession runs reclaim, check and create in one transaction holding the employee row
// lock. A duplicate is recorded as BLOCKED and committed; ErrDuplicateSession is returned
// after the commit. On the final pass a unique violation is also reported as a duplicate.
func (s *AuthService) openSession(ctx context.Context, employeeID string, in LoginInput, attempt *attdomain.Attempt, final bool) (*LoginResult, error) {
	var (
		res     *LoginResult
		blocked bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		res, blocked = nil, false
		attempt.ID, attempt.Status = "", ""
		now := s.lifecycle.Now()

		emp, err := tx.Employees().LockByID(ctx, employeeID)
		if err != nil {
			return err
		}
		if emp == nil {
			return ErrInvalidCredentials
		}

		current, err := tx.Sessions().FindActive(ctx, emp.ID)
		if err != nil {
			return err
		}
		if current != nil {
			gone, err := s.lifecycle.ExpireIfStale(ctx, tx.Sessions(), current, now)
			if err != nil {
				return err
			}
			if !gone {
				blocked = true
				s.recordIn(ctx, tx, attempt, attdomain.StatusBlocked, attdomain.ReasonDuplicate, now)
				return nil
			}
		}

		token, expiresAt, err := s.tokens.Issue(security.TokenSubject{
			EmployeeID: emp.ID,
			Email:      emp.Email,
			Department: emp.DepartmentName,
			Role:       emp.RoleName,
			FullName:   emp.FullName(),
		})
		if err != nil {
			return err
		}
		sess := &sessdomain.Session{
			ID:               uuid.NewString(),
			EmployeeID:       emp.ID,
			TokenHash:        security.HashToken(token),
			DeviceID:         in.DeviceID,
			IPAddress:        in.IPAddress,
			LoginTime:        now,
			LastActivityTime: now,
			Status:           sessdomain.StatusActive,
		}
		if err := tx.Sessions().Create(ctx, sess); err != nil {
			if final && errors.Is(err, sessionrepo.ErrActiveSessionExists) {
				blocked = true
				s.recordIn(ctx, tx, attempt, attdomain.StatusBlocked, attdomain.ReasonDuplicate, now)
				return nil
			}
			return err
		}
		if err := tx.Employees().UpdateLastLogin(ctx, emp.ID, now); err != nil {
			return err
		}
		s.recordIn(ctx, tx, attempt, attdomain.StatusSuccess, "", now)

		res = s.buildLoginResult(emp, token, expiresAt, sess.ID, now)
		return nil
	})
	if err != nil {
		attempt.ID, attempt.Status = "", ""
		return nil, err
	}
	if blocked {
		zerolog.Ctx(ctx).Warn().Str("employee_id", employeeID).Str("device_id", in.DeviceID).
			Msg("auth: login blocked, employee already has an active session")
		return nil, ErrDuplicateSession
	}
	zerolog.Ctx(ctx).Info().Str("employee_id", employeeID).Str("session_id", res.SessionID).Msg("auth: login successful")
	return res, nil
}

func (s *AuthService) recordIn(ctx context.Context, tx store.Repos, attempt *attdomain.Attempt, status attdomain.Status, reason string, now time.Time) {
	attempt.Status = status
	attempt.FailureReason = reason
	attempt.AttemptTime = now.UTC()
	s.attempts.Record(ctx, tx.LoginAttempts(), attempt)
}

func (s *AuthService) buildLoginResult(emp *empdomain.Employee, token string, expiresAt time.Time, sessionID string, now time.Time) *LoginResult {
	expired, daysLeft := emp.PasswordExpiry(s.cfg.PasswordMaxAgeDays, now.In(s.cfg.Location))
	res := &LoginResult{
		Token:                   token,
		TokenType:               TokenType,
		ExpiresAt:               expiresAt,
		ExpiresIn:               s.tokens.TTL(),
		SessionID:               sessionID,
		Employee:                emp,
		PasswordExpired:         expired,
		DaysUntilPasswordExpiry: daysLeft,
	}
	if daysLeft != nil && *daysLeft > 0 && *daysLeft <= s.cfg.PasswordWarnDays {
		res.PasswordExpiryWarning = fmt.Sprintf(msgExpiryWarning, *daysLeft)
	}
	return res
}

// Logout ends the session holding token. Unknown tokens and sessions that already ended
// are not errors, so calling Logout twice is safe.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	sess, err := s.store.Sessions().FindByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active() {
		return nil
	}
	now := s.lifecycle.Now()
	ended, err := s.store.Sessions().Terminate(ctx, sess.ID, sessdomain.StatusLoggedOut, now)
	if err != nil {
		return err
	}
	if !ended {
		return nil
	}
	s.metrics.SessionsTerminated(ctx, string(sessdomain.StatusLoggedOut), 1)
	zerolog.Ctx(ctx).Info().Str("employee_id", sess.EmployeeID).Str("session_id", sess.ID).Msg("auth: logout")
	_ = s.events.Emit(ctx, &telemetry.SecurityEvent{
		Type:       telemetry.EventLogout,
		EmployeeID: sess.EmployeeID,
		SessionID:  sess.ID,
		Status:     string(sessdomain.StatusLoggedOut),
		DeviceID:   sess.DeviceID,
		IPAddress:  sess.IPAddress,
		OccurredAt: now.UTC(),
	})
	return nil
}

// LogoutAllSessions ends every ACTIVE session of the employee with status, which must be
// LOGGED_OUT or FORCE_LOGOUT. Returns how many sessions ended.
func (s *AuthService) LogoutAllSessions(ctx context.Context, employeeID string, status sessdomain.Status) (int64, error) {
	if status != sessdomain.StatusLoggedOut && status != sessdomain.StatusForceLogout {
		return 0, fmt.Errorf("logout all sessions: unsupported status %q", status)
	}
	n, err := s.store.Sessions().TerminateByEmployee(ctx, employeeID, status, s.lifecycle.Now())
	if err != nil {
		return 0, err
	}
	s.metrics.SessionsTerminated(ctx, string(status), n)
	return n, nil
}

// ForceLogout ends every ACTIVE session of the employee as FORCE_LOGOUT on behalf of actor.
func (s *AuthService) ForceLogout(ctx context.Context, employeeID, actor string) (int64, error) {
	emp, err := s.store.Employees().GetByID(ctx, employeeID)
	if err != nil {
		return 0, err
	}
	if emp == nil {
		return 0, ErrPrincipalNotFound
	}
	return s.forceLogout(ctx, emp, actor)
}

func (s *AuthService) forceLogout(ctx context.Context, emp *empdomain.Employee, actor string) (int64, error) {
	n, err := s.LogoutAllSessions(ctx, emp.ID, sessdomain.StatusForceLogout)
	if err != nil {
		return 0, err
	}
	zerolog.Ctx(ctx).Info().
		Str("employee_id", emp.ID).
		Str("actor", actor).
		Int64("sessions", n).
		Msg("auth: forced logout")
	_ = s.events.Emit(ctx, &telemetry.SecurityEvent{
		Type:       telemetry.EventForceLogout,
		EmployeeID: emp.ID,
		Email:      emp.Email,
		Status:     string(sessdomain.StatusForceLogout),
		Actor:      actor,
		OccurredAt: s.lifecycle.Now().UTC(),
	})
	return n, nil
}

// ChangePassword replaces the caller's password. The current session stays ACTIVE.
// Format and confirmation checks run before anything is read or written.
func (s *AuthService) ChangePassword(ctx context.Context, email, current, next, confirm string) (*PasswordChangeResult, error) {
	if err := s.checkNewPassword(next, confirm); err != nil {
		return nil, err
	}
	emp, err := s.store.Employees().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, ErrPrincipalNotFound
	}
	if !s.hasher.Matches(emp.PasswordHash, current) {
		zerolog.Ctx(ctx).Warn().Str("employee_id", emp.ID).Msg("auth: current password incorrect")
		return nil, ErrCurrentPasswordIncorrect
	}
	if s.hasher.Matches(emp.PasswordHash, next) {
		return nil, security.PolicyViolation(msgPasswordReuse)
	}

	today, err := s.setPassword(ctx, emp.ID, next)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("employee_id", emp.ID).Msg("auth: password changed")
	_ = s.events.Emit(ctx, &telemetry.SecurityEvent{
		Type:       telemetry.EventPasswordChange,
		EmployeeID: emp.ID,
		Email:      emp.Email,
		Actor:      emp.Email,
		OccurredAt: s.lifecycle.Now().UTC(),
	})
	return &PasswordChangeResult{
		LastPasswordChangeDate: today,
		NextPasswordChangeDate: today.AddDate(0, 0, s.cfg.PasswordMaxAgeDays),
		DaysUntilExpiry:        s.cfg.PasswordMaxAgeDays,
	}, nil
}

// ResetPassword sets the employee's password on behalf of resetBy and then force-logs-out
// every session the employee has.
func (s *AuthService) ResetPassword(ctx context.Context, email, next, confirm, resetBy string) error {
	if err := s.checkNewPassword(next, confirm); err != nil {
		return err
	}
	emp, err := s.store.Employees().GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if emp == nil {
		return ErrPrincipalNotFound
	}
	if _, err := s.setPassword(ctx, emp.ID, next); err != nil {
		return err
	}
	_ = s.events.Emit(ctx, &telemetry.SecurityEvent{
		Type:       telemetry.EventPasswordReset,
		EmployeeID: emp.ID,
		Email:      emp.Email,
		Actor:      resetBy,
		OccurredAt: s.lifecycle.Now().UTC(),
	})
	if _, err := s.forceLogout(ctx, emp, resetBy); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("employee_id", emp.ID).Str("reset_by", resetBy).Msg("auth: password reset")
	return nil
}

func (s *AuthService) checkNewPassword(next, confirm string) error {
	if err := s.policy.Validate(next); err != nil {
		return err
	}
	if next != confirm {
		return security.PolicyViolation(msgConfirmMismatch)
	}
	return nil
}

// setPassword stores the new hash with today's date in the configured zone.
func (s *AuthService) setPassword(ctx context.Context, employeeID, password string) (time.Time, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return time.Time{}, err
	}
	today := empdomain.DateOf(s.lifecycle.Now().In(s.cfg.Location))
	if err := s.store.Employees().UpdatePassword(ctx, employeeID, hash, today); err != nil {
		return time.Time{}, err
	}
	return today, nil
}
