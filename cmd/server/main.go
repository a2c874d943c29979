// Server runs the authentication HTTP API. When RUN_MAINTENANCE is true it also runs the
// session reconcile and retention purge jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"workforce/backend/internal/config"
	"workforce/backend/internal/db"
	healthhandler "workforce/backend/internal/health/handler"
	authhandler "workforce/backend/internal/identity/handler"
	"workforce/backend/internal/identity/service"
	"workforce/backend/internal/logging"
	"workforce/backend/internal/loginattempt"
	attempthandler "workforce/backend/internal/loginattempt/handler"
	"workforce/backend/internal/maintenance"
	"workforce/backend/internal/policy/engine"
	"workforce/backend/internal/security"
	"workforce/backend/internal/server"
	"workforce/backend/internal/session/lifecycle"
	"workforce/backend/internal/store"
	"workforce/backend/internal/telemetry"
	"workforce/backend/internal/telemetry/loki"
	"workforce/backend/internal/telemetry/metrics"
	telemetryotel "workforce/backend/internal/telemetry/otel"
	"workforce/backend/internal/telemetry/producer"
)

const (
	serviceName     = "workforce-auth"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "production").Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server: exited with error")
	}
	logger.Info().Msg("server: stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("server: otel shutdown")
		}
	}()
	authMetrics, err := metrics.NewGlobal()
	if err != nil {
		return err
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultConnectTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()
	st := store.NewPostgres(pool)

	sinks := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic)
	if err != nil {
		return err
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		sinks = append(sinks, kafkaProducer)
		logger.Info().Str("topic", cfg.SecurityEventsTopic).Msg("server: publishing security events to kafka")
	}
	if lokiClient := loki.NewClient(cfg.LokiURL, nil); lokiClient != nil {
		sinks = append(sinks, lokiClient)
	}
	events := telemetry.NewAsyncEmitter(sinks)
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
		defer cancel()
		_ = events.Drain(dctx)
	}()

	authz, err := newAuthorizer(ctx, cfg)
	if err != nil {
		return err
	}

	tokens, err := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.TokenTTL())
	if err != nil {
		return err
	}
	lc := lifecycle.NewEngine(st.Sessions(), tokens, lifecycle.Config{
		InactivityTimeout: cfg.InactivityTimeout(),
		Location:          loc,
		Retention:         cfg.SessionRetentionPeriod(),
	}, lifecycle.WithMetrics(authMetrics))
	recorder := loginattempt.NewRecorder(st.LoginAttempts(),
		loginattempt.WithMetrics(authMetrics),
		loginattempt.WithEvents(events),
		loginattempt.WithFailureWatch(cfg.FailedLoginLookback(), cfg.FailedLoginWarnThreshold))
	auth := service.NewAuthService(st, lc, tokens, security.NewHasher(cfg.BcryptCost), recorder,
		service.Config{
			PasswordMaxAgeDays: cfg.PasswordMaxAgeDays,
			PasswordWarnDays:   cfg.PasswordWarnDays,
			Location:           loc,
		},
		service.WithEvents(events),
		service.WithMetrics(authMetrics))

	proxies, err := authhandler.ParseTrustedProxies(cfg.TrustedProxiesList())
	if err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}

	router := server.NewRouter(server.Deps{
		Logger:   logging.Logger,
		Sessions: lc,
		Authz:    authz,
		Auth:     authhandler.NewServer(auth, st.Sessions(), authhandler.WithTrustedProxies(proxies)),
		Attempts: attempthandler.NewServer(recorder),
		Health:   healthhandler.NewServer(st, authz),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("server: shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.RunMaintenance {
		sched := maintenance.NewScheduler(maintenance.SessionJobs(lc, recorder, maintenance.Intervals{
			Reconcile:        cfg.ReconcileEvery(),
			Purge:            cfg.PurgeEvery(),
			AttemptRetention: cfg.LoginAttemptRetentionPeriod(),
		})...)
		g.Go(func() error { return sched.Run(gctx) })
	}
	return g.Wait()
}

func newAuthorizer(ctx context.Context, cfg *config.Config) (*engine.OPAEvaluator, error) {
	if cfg.AuthzPolicyFile != "" {
		return engine.NewOPAEvaluatorFromFile(ctx, cfg.AuthzPolicyFile)
	}
	return engine.NewOPAEvaluator(ctx)
}
