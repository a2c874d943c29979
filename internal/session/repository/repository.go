package repository

import (
	"context"
	"errors"
	"time"

	"workforce/backend/internal/session/domain"
)

// ErrActiveSessionExists is returned by Create when the employee already has an ACTIVE session.
var ErrActiveSessionExists = errors.New("employee already has an active session")

// Repository defines persistence for sessions. Lookups return (nil, nil) when nothing matches.
// Every transition out of ACTIVE is a conditional update, so a row that is already
// terminal is never touched again.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	FindActive(ctx context.Context, employeeID string) (*domain.Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Touch advances last_activity_time of the ACTIVE session holding tokenHash.
	Touch(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	// Terminate moves one ACTIVE session to status and stamps logout_time.
	Terminate(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error)
	// TerminateByEmployee moves every ACTIVE session of the employee to status.
	TerminateByEmployee(ctx context.Context, employeeID string, status domain.Status, at time.Time) (int64, error)
	// ExpireIdleSince expires ACTIVE sessions whose last activity is before cutoff.
	ExpireIdleSince(ctx context.Context, cutoff, at time.Time) (int64, error)
	// ExpireLoggedInBefore expires ACTIVE sessions whose login time is before dayStart.
	ExpireLoggedInBefore(ctx context.Context, dayStart, at time.Time) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	// PurgeTerminalOlderThan hard-deletes terminal sessions whose logout_time is before cutoff.
	PurgeTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
