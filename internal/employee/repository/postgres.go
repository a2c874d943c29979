package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workforce/backend/internal/db"
	"workforce/backend/internal/employee/domain"

	"github.com/jackc/pgx/v5"
)

// ErrNoRows is returned by updates that matched no employee.
var ErrNoRows = errors.New("employee not found")

const selectEmployee = `
SELECT e.id, e.emp_code, e.email, e.password_hash, e.first_name, COALESCE(e.middle_name, ''), e.last_name,
       e.department_id, d.department_name, e.role_id, r.role_name, e.is_active,
       e.last_password_change_date, e.last_login_at, e.created_at
FROM employees e
JOIN departments d ON d.id = e.department_id
JOIN roles r ON r.id = e.role_id`

type PostgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns an employee repository running its statements on q,
// which may be the pool or an open transaction.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

// GetByID returns the employee for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.one(ctx, selectEmployee+` WHERE e.id = $1`, id)
}

// GetByEmail returns the employee whose email matches case-insensitively, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return r.one(ctx, selectEmployee+` WHERE lower(e.email) = lower($1)`, strings.TrimSpace(email))
}

// LockByID is GetByID with FOR UPDATE on the employee row. Only meaningful inside a transaction.
func (r *PostgresRepository) LockByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.one(ctx, selectEmployee+` WHERE e.id = $1 FOR UPDATE OF e`, id)
}

// UpdateLastLogin stamps the employee's last successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE employees SET last_login_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// UpdatePassword replaces the password hash and records the change date.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedOn time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE employees
		SET password_hash = $2, last_password_change_date = $3, updated_at = now()
		WHERE id = $1`, id, passwordHash, domain.DateOf(changedOn))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// Create inserts e. Used by the seed command; employee management owns regular writes.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Employee) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO employees (id, emp_code, email, password_hash, first_name, middle_name, last_name,
		                       department_id, role_id, is_active, last_password_change_date, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, 'seed')
		ON CONFLICT (email) DO NOTHING`,
		e.ID, e.Code, e.Email, e.PasswordHash, e.FirstName, e.MiddleName, e.LastName,
		e.DepartmentID, e.RoleID, e.Active, e.LastPasswordChange)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// EnsureDepartment returns the id of the named department, creating it if needed.
func (r *PostgresRepository) EnsureDepartment(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO departments (department_name, created_by) VALUES ($1, 'seed')
		ON CONFLICT (department_name) DO UPDATE SET updated_at = now()
		RETURNING id`, name).Scan(&id)
	return id, err
}

// EnsureRole returns the id of the named role, creating it if needed.
func (r *PostgresRepository) EnsureRole(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO roles (role_name) VALUES ($1)
		ON CONFLICT (role_name) DO UPDATE SET updated_at = now()
		RETURNING id`, name).Scan(&id)
	return id, err
}

func (r *PostgresRepository) one(ctx context.Context, sql string, args ...any) (*domain.Employee, error) {
	e, err := scanEmployee(r.q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(
		&e.ID, &e.Code, &e.Email, &e.PasswordHash, &e.FirstName, &e.MiddleName, &e.LastName,
		&e.DepartmentID, &e.DepartmentName, &e.RoleID, &e.RoleName, &e.Active,
		&e.LastPasswordChange, &e.LastLoginAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

var _ Repository = (*PostgresRepository)(nil)
