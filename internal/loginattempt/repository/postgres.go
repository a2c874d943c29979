package repository

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"workforce/backend/internal/db"
	"workforce/backend/internal/loginattempt/domain"

	"github.com/jackc/pgx/v5"
)

const selectAttempt = `
SELECT id, COALESCE(employee_id, ''), email, attempt_time, COALESCE(device_identifier, ''),
       COALESCE(ip_address, ''), COALESCE(user_agent, ''), status, COALESCE(failure_reason, '')
FROM login_attempts`

type PostgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns a login attempt repository running its statements on q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

// Create inserts the attempt inside its own savepoint when q is a transaction, so a failed
// insert leaves the surrounding login transaction usable.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Attempt) error {
	return db.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO login_attempts (id, employee_id, email, attempt_time, device_identifier,
			                            ip_address, user_agent, status, failure_reason)
			VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''))`,
			a.ID, a.EmployeeID, truncate(a.Email, 100), a.AttemptTime, truncate(a.DeviceID, 255),
			truncate(a.IPAddress, 45), truncate(a.UserAgent, 500), string(a.Status), truncate(a.FailureReason, 255))
		return err
	})
}

// CountFailuresSince counts FAILED attempts for email at or after since.
func (r *PostgresRepository) CountFailuresSince(ctx context.Context, email string, since time.Time) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE lower(email) = lower($1) AND status = 'FAILED' AND attempt_time >= $2`,
		strings.TrimSpace(email), since).Scan(&n)
	return n, err
}

// List returns attempts newest first.
func (r *PostgresRepository) List(ctx context.Context, page domain.Page) ([]*domain.Attempt, error) {
	page = page.Normalize()
	return r.many(ctx, selectAttempt+` ORDER BY attempt_time DESC, id LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
}

// ListByStatus returns attempts with status, newest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status domain.Status, page domain.Page) ([]*domain.Attempt, error) {
	page = page.Normalize()
	return r.many(ctx, selectAttempt+` WHERE status = $1 ORDER BY attempt_time DESC, id LIMIT $2 OFFSET $3`,
		string(status), page.Limit, page.Offset)
}

// ListByEmployee returns the employee's attempts, newest first.
func (r *PostgresRepository) ListByEmployee(ctx context.Context, employeeID string, page domain.Page) ([]*domain.Attempt, error) {
	page = page.Normalize()
	return r.many(ctx, selectAttempt+` WHERE employee_id = $1 ORDER BY attempt_time DESC, id LIMIT $2 OFFSET $3`,
		employeeID, page.Limit, page.Offset)
}

// CountByStatus counts attempts with status.
func (r *PostgresRepository) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM login_attempts WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

// PurgeOlderThan deletes attempts made before cutoff.
func (r *PostgresRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) many(ctx context.Context, sql string, args ...any) ([]*domain.Attempt, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Attempt
	for rows.Next() {
		var (
			a      domain.Attempt
			status string
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Email, &a.AttemptTime, &a.DeviceID,
			&a.IPAddress, &a.UserAgent, &status, &a.FailureReason); err != nil {
			return nil, err
		}
		a.Status = domain.Status(status)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// truncate cuts s to at most n characters to fit its VARCHAR column.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var _ Repository = (*PostgresRepository)(nil)
