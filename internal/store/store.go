// Package store groups the repositories the authentication core mutates together and
// runs them in one database transaction.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workforce/backend/internal/db"
	employeerepo "workforce/backend/internal/employee/repository"
	attemptrepo "workforce/backend/internal/loginattempt/repository"
	sessionrepo "workforce/backend/internal/session/repository"
)

// Repos exposes the repositories bound to one connection or transaction.
type Repos interface {
	Employees() employeerepo.Repository
	Sessions() sessionrepo.Repository
	LoginAttempts() attemptrepo.Repository
}

// Store is the unit of work. Repos on the Store itself run each statement on its own;
// InTx binds them to one transaction that commits when fn returns nil.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
	Ping(ctx context.Context) error
}

// Postgres implements Store over a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	repos
}

// NewPostgres returns a Store on pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, repos: bind(pool)}
}

// InTx runs fn in a transaction. Any error from fn rolls everything back.
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error {
	return db.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

// Ping checks that the database answers.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type repos struct {
	employees *employeerepo.PostgresRepository
	sessions  *sessionrepo.PostgresRepository
	attempts  *attemptrepo.PostgresRepository
}

func bind(q db.Querier) repos {
	return repos{
		employees: employeerepo.NewPostgresRepository(q),
		sessions:  sessionrepo.NewPostgresRepository(q),
		attempts:  attemptrepo.NewPostgresRepository(q),
	}
}

func (r repos) Employees() employeerepo.Repository { return r.employees }

func (r repos) Sessions() sessionrepo.Repository { return r.sessions }

func (r repos) LoginAttempts() attemptrepo.Repository { return r.attempts }

var _ Store = (*Postgres)(nil)
