// migrate runs DB migrations from embedded SQL; use with ./scripts/migrate.sh or go run ./cmd/migrate.
package main

import (
	"flag"
	"os"

	"workforce/backend/internal/config"
	"workforce/backend/internal/db/migrate"
	"workforce/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	logger := logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	version, err := migrate.Run(cfg.DatabaseURL, dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Str("direction", string(dir)).Uint("version", version).Msg("migrate: done")
}
