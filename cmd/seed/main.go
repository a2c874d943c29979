// seed inserts development employees for local testing. Run via ./scripts/seed.sh.
// Idempotent: departments and roles are upserted and existing employees are left alone.
package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"workforce/backend/internal/config"
	"workforce/backend/internal/db"
	"workforce/backend/internal/employee/domain"
	"workforce/backend/internal/employee/repository"
	"workforce/backend/internal/logging"
	"workforce/backend/internal/security"
)

const devPassword = "Passw0rd123"

type seedEmployee struct {
	code       string
	email      string
	first      string
	last       string
	department string
	role       string
	active     bool
}

var employees = []seedEmployee{
	{"2026/001", "admin@example.com", "Ada", "Admin", "ADMIN", "ADMINISTRATOR", true},
	{"2026/002", "hr@example.com", "Hana", "Reyes", "HR", "MANAGER", true},
	{"2026/003", "dev@example.com", "Dev", "Patel", "ENGINEERING", "DEVELOPER", true},
	{"2026/004", "former@example.com", "Fay", "Gone", "ENGINEERING", "DEVELOPER", false},
}

func main() {
	logger := logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx := logger.WithContext(context.Background())
	pool, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultConnectTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("db")
	}
	defer pool.Close()
	repo := repository.NewPostgresRepository(pool)

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(devPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash password")
	}
	today := domain.DateOf(time.Now())

	for _, s := range employees {
		existing, err := repo.GetByEmail(ctx, s.email)
		if err != nil {
			logger.Fatal().Err(err).Str("email", s.email).Msg("seed check")
		}
		if existing != nil {
			logger.Info().Str("email", s.email).Msg("seed: employee exists, skipping")
			continue
		}
		deptID, err := repo.EnsureDepartment(ctx, s.department)
		if err != nil {
			logger.Fatal().Err(err).Str("department", s.department).Msg("seed department")
		}
		roleID, err := repo.EnsureRole(ctx, s.role)
		if err != nil {
			logger.Fatal().Err(err).Str("role", s.role).Msg("seed role")
		}
		if err := repo.Create(ctx, &domain.Employee{
			ID:                 uuid.NewString(),
			Code:               s.code,
			Email:              s.email,
			PasswordHash:       hash,
			FirstName:          s.first,
			LastName:           s.last,
			DepartmentID:       deptID,
			RoleID:             roleID,
			Active:             s.active,
			LastPasswordChange: &today,
		}); err != nil {
			logger.Fatal().Err(err).Str("email", s.email).Msg("seed employee")
		}
		logger.Info().Str("email", s.email).Str("department", s.department).Msg("seed: employee created")
	}
	logger.Info().Str("password", devPassword).Msg("seed: done")
}
