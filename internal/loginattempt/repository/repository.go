package repository

import (
	"context"
	"time"

	"workforce/backend/internal/loginattempt/domain"
)

// Repository defines persistence for login attempts. Rows are never updated.
type Repository interface {
	Create(ctx context.Context, a *domain.Attempt) error
	CountFailuresSince(ctx context.Context, email string, since time.Time) (int64, error)
	List(ctx context.Context, page domain.Page) ([]*domain.Attempt, error)
	ListByStatus(ctx context.Context, status domain.Status, page domain.Page) ([]*domain.Attempt, error)
	ListByEmployee(ctx context.Context, employeeID string, page domain.Page) ([]*domain.Attempt, error)
	CountByStatus(ctx context.Context, status domain.Status) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
