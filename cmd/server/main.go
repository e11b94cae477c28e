// Server runs the cyber-monitor HTTP API: event ingestion, statistics, alerting, settings and analysis.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cyber-monitor/backend/internal/alert"
	alerthandler "cyber-monitor/backend/internal/alert/handler"
	"cyber-monitor/backend/internal/analyzer"
	analyzerhandler "cyber-monitor/backend/internal/analyzer/handler"
	"cyber-monitor/backend/internal/config"
	"cyber-monitor/backend/internal/db"
	"cyber-monitor/backend/internal/db/migrate"
	devicehandler "cyber-monitor/backend/internal/device/handler"
	devicerepo "cyber-monitor/backend/internal/device/repository"
	eventhandler "cyber-monitor/backend/internal/event/handler"
	eventrepo "cyber-monitor/backend/internal/event/repository"
	eventservice "cyber-monitor/backend/internal/event/service"
	healthhandler "cyber-monitor/backend/internal/health/handler"
	"cyber-monitor/backend/internal/logger"
	"cyber-monitor/backend/internal/metrics"
	"cyber-monitor/backend/internal/security"
	"cyber-monitor/backend/internal/server"
	"cyber-monitor/backend/internal/settings"
	settingsdomain "cyber-monitor/backend/internal/settings/domain"
	settingshandler "cyber-monitor/backend/internal/settings/handler"
	settingsrepo "cyber-monitor/backend/internal/settings/repository"
	"cyber-monitor/backend/internal/stats"
	statshandler "cyber-monitor/backend/internal/stats/handler"
	"cyber-monitor/backend/internal/storage"
	"cyber-monitor/backend/internal/telemetry"
	telemetryotel "cyber-monitor/backend/internal/telemetry/otel"
	"cyber-monitor/backend/internal/telemetry/producer"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	l := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal().Err(err).Msg("server exited")
	}
	l.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, l zerolog.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		ServiceName:    "cyber-monitor",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			l.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	var (
		database     *sql.DB
		events       eventrepo.Repository  = eventrepo.NewMemoryRepository()
		devices      devicerepo.Repository = devicerepo.NewMemoryRepository()
		settingsRepo settingsrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			l.Info().Msg("migrations applied")
		}
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer database.Close()
		events = eventrepo.NewPostgresRepository(database)
		devices = devicerepo.NewPostgresRepository(database)
		settingsRepo = settingsrepo.NewPostgresRepository(database)
	} else {
		l.Warn().Msg("DATABASE_URL not set; events and settings are kept in memory")
	}

	m := metrics.New()
	runner := telemetry.NewRunner(l, 0)
	emitters := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.EventKafkaBrokersList(), cfg.EventKafkaTopic); kp != nil {
		emitters = append(emitters, kp)
		defer func() {
			if err := kp.Close(); err != nil {
				l.Warn().Err(err).Msg("kafka producer close")
			}
		}()
		l.Info().Str("topic", cfg.EventKafkaTopic).Msg("event streaming to kafka enabled")
	}

	store, err := settings.NewStore(settingsdomain.Settings{
		AlertRecipient: cfg.AlertEmail,
		AlertThreshold: cfg.AlertThreshold,
	}, settingsRepo)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := store.Load(ctx); err != nil {
		return err
	}

	uploads, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	captures, err := storage.NewDiskStore(filepath.Join(cfg.UploadDir, "captures"))
	if err != nil {
		return fmt.Errorf("captures: %w", err)
	}

	mailer := alert.NewSMTPMailer(alert.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SenderAddress(),
		TLS:      cfg.SMTPTLS,
		Timeout:  cfg.SMTPTimeoutDuration(),
	})
	if !mailer.Configured() {
		l.Warn().Msg("SMTP not configured; alerts will fail to send")
	}
	dispatcher := alert.NewDispatcher(alert.Deps{
		Mailer:   mailer,
		Settings: store,
		Audit:    events,
		Emitter:  emitters,
		Runner:   runner,
		Metrics:  m,
		Logger:   l,
	})

	ingest := eventservice.New(eventservice.Deps{
		Store:          events,
		Files:          uploads,
		Devices:        devices,
		Thresholds:     store,
		Notifier:       dispatcher,
		Emitter:        emitters,
		Runner:         runner,
		Metrics:        m,
		Logger:         l,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	statsSvc := stats.New(events, cfg.Location())

	engines := analyzer.New(analyzer.Config{
		Python: cfg.PythonBin,
		Scripts: map[analyzer.Engine]string{
			analyzer.PacketAnalyzer: cfg.PacketAnalyzerScript,
			analyzer.NetworkScanner: cfg.NetworkScannerScript,
		},
		Timeout:        cfg.AnalyzerTimeoutDuration(),
		MaxOutputBytes: cfg.AnalyzerMaxOutputBytes,
	}, m, l)

	deps := server.Deps{
		Events:   eventhandler.NewHandler(ingest, statsSvc),
		Stats:    statshandler.NewHandler(statsSvc),
		Alerts:   alerthandler.NewHandler(dispatcher),
		Settings: settingshandler.NewHandler(store, mailer.Configured(), version),
		Analyze:  analyzerhandler.NewHandler(engines, captures, 0),
		Devices:  devicehandler.NewHandler(devices),
		Metrics:  m,
		Logger:   l,
	}
	var pinger healthhandler.Pinger
	if database != nil {
		pinger = database
	}
	deps.Health = healthhandler.NewHandler(pinger)
	if cfg.JWTPublicKey != "" {
		verifier, err := security.LoadTokenVerifier(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			return fmt.Errorf("jwt: %w", err)
		}
		deps.Verifier = verifier
		l.Info().Str("issuer", cfg.JWTIssuer).Msg("bearer authentication enabled")
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := server.Serve(ctx, lis, server.NewRouter(deps), l)

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Drain(drainCtx); err != nil {
		l.Warn().Err(err).Msg("background tasks still running at shutdown")
	}
	if serveErr != nil && !errors.Is(serveErr, net.ErrClosed) {
		return serveErr
	}
	return nil
}
