// Worker runs the session maintenance jobs outside the API process: inactivity and
// day-rollover reconciliation, and the retention purge. Deploy it with RUN_MAINTENANCE=false
// on the API servers. Pass -once to run every job a single time and exit (cron style).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"workforce/backend/internal/config"
	"workforce/backend/internal/db"
	"workforce/backend/internal/logging"
	"workforce/backend/internal/loginattempt"
	"workforce/backend/internal/maintenance"
	"workforce/backend/internal/security"
	"workforce/backend/internal/session/lifecycle"
	"workforce/backend/internal/store"
	"workforce/backend/internal/telemetry/metrics"
	telemetryotel "workforce/backend/internal/telemetry/otel"
)

func main() {
	once := flag.Bool("once", false, "run every job once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "production").Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: timezone")
	}
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "workforce-auth-worker", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: otel")
	}
	providers.SetGlobal()
	defer func() { _ = providers.Shutdown(context.Background()) }()
	authMetrics, err := metrics.NewGlobal()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: metrics")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultConnectTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: database")
	}
	defer pool.Close()
	st := store.NewPostgres(pool)

	// the token codec is unused by reconcile and purge but the engine requires one
	tokens, err := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.TokenTTL())
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: token codec")
	}
	lc := lifecycle.NewEngine(st.Sessions(), tokens, lifecycle.Config{
		InactivityTimeout: cfg.InactivityTimeout(),
		Location:          loc,
		Retention:         cfg.SessionRetentionPeriod(),
	}, lifecycle.WithMetrics(authMetrics))
	recorder := loginattempt.NewRecorder(st.LoginAttempts(), loginattempt.WithMetrics(authMetrics))

	sched := maintenance.NewScheduler(maintenance.SessionJobs(lc, recorder, maintenance.Intervals{
		Reconcile:        cfg.ReconcileEvery(),
		Purge:            cfg.PurgeEvery(),
		AttemptRetention: cfg.LoginAttemptRetentionPeriod(),
	})...)

	if *once {
		if err := sched.RunOnce(ctx); err != nil {
			logger.Fatal().Err(err).Msg("worker: run once")
		}
		return
	}
	logger.Info().Msg("worker: started")
	if err := sched.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: scheduler")
	}
	logger.Info().Msg("worker: stopped")
}
