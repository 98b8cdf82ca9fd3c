package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"driver-provisioning/backend/internal/audit"
	auditrepo "driver-provisioning/backend/internal/audit/repository"
	"driver-provisioning/backend/internal/config"
	"driver-provisioning/backend/internal/db"
	driverrepo "driver-provisioning/backend/internal/driver/repository"
	"driver-provisioning/backend/internal/errtrack"
	healthhandler "driver-provisioning/backend/internal/health/handler"
	"driver-provisioning/backend/internal/identity/gateway"
	"driver-provisioning/backend/internal/mailer"
	"driver-provisioning/backend/internal/notification"
	"driver-provisioning/backend/internal/policy/engine"
	provisioninghandler "driver-provisioning/backend/internal/provisioning/handler"
	"driver-provisioning/backend/internal/provisioning/service"
	"driver-provisioning/backend/internal/security"
	"driver-provisioning/backend/internal/server"
	"driver-provisioning/backend/internal/server/middleware"
	"driver-provisioning/backend/internal/telemetry"
	telemetryotel "driver-provisioning/backend/internal/telemetry/otel"
	"driver-provisioning/backend/internal/telemetry/producer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if _, err := security.CheckServiceKey(cfg.IdentityServiceKey(), time.Now()); err != nil {
		return fmt.Errorf("identity service key: %w", err)
	}

	ctx := context.Background()
	tracker := errtrack.New(cfg.SentryDSN, cfg.Env, "")
	defer tracker.Flush(2 * time.Second)

	otelProviders, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	if otelProviders != nil {
		otelProviders.SetGlobal()
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute})
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close()

	identities := gateway.NewClient(cfg.IdentityBaseURL(), cfg.IdentityServiceKey())
	identities.HTTPClient.Timeout = cfg.IdentityRequestTimeout()
	identities.PageSize = cfg.IdentityPageSize
	identities.MaxPages = cfg.IdentityMaxPages
	identities.MaxAttempts = cfg.IdentityMaxAttempts
	identities.RedirectURL = cfg.CredentialRedirectURL
	identities.Logger = logger

	events, closeEvents, err := newEventEmitter(cfg, otelProviders)
	if err != nil {
		return err
	}
	defer closeEvents()

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), callerFromContext, middleware.ClientIP)

	deps := service.Deps{
		Identities:       identities,
		Profiles:         driverrepo.NewPostgresRepository(database),
		Audit:            auditLogger,
		Events:           events,
		Logger:           logger,
		PermissionErrors: cfg.IdentityPermissionErrors,
	}
	if cfg.NotifyCredentialSetup {
		var mail notification.Mailer
		if m := mailer.NewMailtrap(cfg.MailtrapAPIURL, cfg.MailtrapAPIKey, cfg.MailFromEmail, cfg.MailFromName); m != nil {
			mail = m
		}
		deps.Notifier = notification.NewNotifier(identities, mail, auditLogger, logger)
	}

	policy, err := engine.NewOPAEvaluatorFromFile(ctx, cfg.AccessPolicyFile)
	if err != nil {
		return fmt.Errorf("access policy: %w", err)
	}

	router := server.NewRouter(server.Deps{
		Provisioning: provisioninghandler.NewHandler(service.NewProvisioner(deps), service.NewDeprovisioner(deps), tracker, logger),
		Health:       healthhandler.NewServer(database, policy, identities),
		Tokens:       security.NewCallerVerifier(cfg.InternalTokenHash),
		Policy:       policy,
		Environment:  strings.ToLower(cfg.Env),
		Audit:        auditLogger,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", "error", err)
	}

	if otelProviders != nil {
		// Let in-flight async event emits finish before the log provider stops.
		time.Sleep(telemetry.ShutdownDrainDuration)
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}
	logger.Info("HTTP server stopped")
	return nil
}

// newEventEmitter fans driver events out to Kafka (when KAFKA_BROKERS is set)
// and to OTel logs (when an OTLP endpoint is set).
func newEventEmitter(cfg *config.Config, providers *telemetryotel.Providers) (telemetry.EventEmitter, func(), error) {
	var fanout telemetry.Fanout
	closeFn := func() {}

	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.ProvisioningKafkaTopic)
	if err != nil {
		return nil, closeFn, fmt.Errorf("kafka: %w", err)
	}
	if kafkaProducer != nil {
		var p producer.Producer = kafkaProducer
		fanout = append(fanout, p)
		closeFn = func() {
			if err := p.Close(); err != nil {
				log.Printf("kafka: close producer: %v", err)
			}
		}
	}
	if cfg.OTelEndpoint != "" && providers != nil && providers.LoggerProvider != nil {
		fanout = append(fanout, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	}
	if len(fanout) == 0 {
		return nil, closeFn, nil
	}
	return fanout, closeFn, nil
}

func callerFromContext(ctx context.Context) string {
	caller, _ := middleware.GetCaller(ctx)
	return caller
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
