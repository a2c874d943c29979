package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workforce/backend/internal/db"
	"workforce/backend/internal/session/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const oneActiveConstraint = "uq_employee_sessions_one_active"

const selectSession = `
SELECT id, employee_id, token_hash, COALESCE(device_identifier, ''), COALESCE(ip_address, ''),
       login_time, last_activity_time, status, logout_time
FROM employee_sessions`

type PostgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns a session repository running its statements on q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.one(ctx, selectSession+` WHERE id = $1`, id)
}

// FindActive returns the employee's ACTIVE session, or nil if there is none.
func (r *PostgresRepository) FindActive(ctx context.Context, employeeID string) (*domain.Session, error) {
	return r.one(ctx, selectSession+` WHERE employee_id = $1 AND status = 'ACTIVE'`, employeeID)
}

// FindByTokenHash returns the session holding tokenHash in any status, or nil.
func (r *PostgresRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	return r.one(ctx, selectSession+` WHERE token_hash = $1`, tokenHash)
}

// Create inserts s inside its own savepoint when q is a transaction. A second ACTIVE row
// for the same employee violates the partial unique index and is reported as
// ErrActiveSessionExists; the surrounding transaction stays usable.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	err := db.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO employee_sessions (id, employee_id, token_hash, device_identifier, ip_address,
			                               login_time, last_activity_time, status, logout_time)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)`,
			s.ID, s.EmployeeID, s.TokenHash, s.DeviceID, s.IPAddress,
			s.LoginTime, s.LastActivityTime, string(s.Status), s.LogoutTime)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == oneActiveConstraint {
			return fmt.Errorf("%w: %w", ErrActiveSessionExists, err)
		}
		return err
	}
	return nil
}

// Touch advances last_activity_time of the ACTIVE session holding tokenHash. Never moves it backwards.
func (r *PostgresRepository) Touch(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE employee_sessions
		SET last_activity_time = GREATEST(last_activity_time, $2)
		WHERE token_hash = $1 AND status = 'ACTIVE'`, tokenHash, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Terminate moves the session to status if it is still ACTIVE.
func (r *PostgresRepository) Terminate(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error) {
	if !status.Terminal() || !status.Valid() {
		return false, fmt.Errorf("terminate: %q is not a terminal status", status)
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE employee_sessions
		SET status = $2, logout_time = $3
		WHERE id = $1 AND status = 'ACTIVE'`, id, string(status), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TerminateByEmployee moves every ACTIVE session of employeeID to status.
func (r *PostgresRepository) TerminateByEmployee(ctx context.Context, employeeID string, status domain.Status, at time.Time) (int64, error) {
	if !status.Terminal() || !status.Valid() {
		return 0, fmt.Errorf("terminate: %q is not a terminal status", status)
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE employee_sessions
		SET status = $2, logout_time = $3
		WHERE employee_id = $1 AND status = 'ACTIVE'`, employeeID, string(status), at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExpireIdleSince expires every ACTIVE session idle since before cutoff.
func (r *PostgresRepository) ExpireIdleSince(ctx context.Context, cutoff, at time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE employee_sessions
		SET status = 'EXPIRED', logout_time = $2
		WHERE status = 'ACTIVE' AND last_activity_time < $1`, cutoff, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExpireLoggedInBefore expires every ACTIVE session opened before dayStart.
func (r *PostgresRepository) ExpireLoggedInBefore(ctx context.Context, dayStart, at time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE employee_sessions
		SET status = 'EXPIRED', logout_time = $2
		WHERE status = 'ACTIVE' AND login_time < $1`, dayStart, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountActive returns the number of ACTIVE sessions.
func (r *PostgresRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM employee_sessions WHERE status = 'ACTIVE'`).Scan(&n)
	return n, err
}

// PurgeTerminalOlderThan deletes terminal sessions that ended before cutoff.
func (r *PostgresRepository) PurgeTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM employee_sessions
		WHERE status <> 'ACTIVE' AND logout_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) one(ctx context.Context, sql string, args ...any) (*domain.Session, error) {
	var (
		s      domain.Session
		status string
	)
	err := r.q.QueryRow(ctx, sql, args...).Scan(
		&s.ID, &s.EmployeeID, &s.TokenHash, &s.DeviceID, &s.IPAddress,
		&s.LoginTime, &s.LastActivityTime, &status, &s.LogoutTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	return &s, nil
}

var _ Repository = (*PostgresRepository)(nil)
