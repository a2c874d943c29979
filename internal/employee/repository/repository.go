package repository

import (
	"context"
	"time"

	"workforce/backend/internal/employee/domain"
)

// Repository defines the employee persistence authentication needs.
// Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	// LockByID reads the employee and holds a row lock until the surrounding
	// transaction ends. Logins for the same employee serialize on it.
	LockByID(ctx context.Context, id string) (*domain.Employee, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedOn time.Time) error
}
