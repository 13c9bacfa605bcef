package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quarryhq/quarry/pkg/api"
	"github.com/quarryhq/quarry/pkg/audit"
	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/authz"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/middleware"
	"github.com/quarryhq/quarry/pkg/observability"
	"github.com/quarryhq/quarry/pkg/storage/postgres"
	"github.com/quarryhq/quarry/pkg/tracker"
)

const auditRetention = 90 * 24 * time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Database pool, primary plus optional read replicas.
	connManager, err := postgres.NewConnectionManager(cfg.Database, logger)
	if err != nil {
		return err
	}
	db := connManager.Primary()

	if err := tracker.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	// Redis backs the distributed rate limiter.
	var rateLimit *middleware.RateLimitMiddleware
	var hc *observability.HealthChecker
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	if cfg.RateLimit.Enabled {
		redisClient, err := postgres.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		rateLimit = middleware.NewRateLimitMiddleware(redisClient, &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			WindowDuration:    time.Minute,
		}, logger, metrics)
		hc = observability.NewHealthChecker(db, redisClient)
	} else {
		hc = observability.NewHealthChecker(db, nil)
	}

	// Tracing is optional and off unless configured.
	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return err
		}
	}

	service := tracker.NewPostgresService(db)
	userStore := auth.NewPostgresStore(db)
	auditStore := audit.NewStore(db)
	auditLogger := audit.NewLogger(auditStore, logger, 0)

	server := api.NewServer(api.ServerConfig{
		Service:    service,
		Engine:     authz.NewEngine(service),
		Users:      userStore,
		JWT:        auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		Hasher:     auth.NewHasher(cfg.Auth.BcryptCost),
		Logger:     logger,
		Metrics:    metrics,
		Audit:      auditLogger,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
		RateLimit:  rateLimit,
	})

	// Background maintenance: expired token cleanup, audit retention and
	// the business gauges.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if removed, err := userStore.CleanupExpiredTokens(cleanupCtx); err != nil {
			logger.WithError(err).Error("refresh token cleanup failed")
		} else if removed > 0 {
			logger.WithField("removed", removed).Info("cleaned up expired refresh tokens")
		}
	}); err != nil {
		return err
	}
	if _, err := scheduler.AddFunc("@daily", func() {
		pruneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if removed, err := auditStore.DeleteOlderThan(pruneCtx, auditRetention); err != nil {
			logger.WithError(err).Error("audit log retention failed")
		} else if removed > 0 {
			logger.WithField("removed", removed).Info("pruned old audit log entries")
		}
	}); err != nil {
		return err
	}
	if _, err := scheduler.AddFunc("@every 1m", func() {
		statsCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stats, err := service.Stats(statsCtx)
		if err != nil {
			logger.WithError(err).Error("failed to collect tracker stats")
			return
		}
		metrics.ProjectsTotal.Set(float64(stats.Projects))
		metrics.IssuesTotal.Set(float64(stats.Issues))
		metrics.CollectDBStats(db)
	}); err != nil {
		return err
	}
	scheduler.Start()

	connManager.StartHealthCheckRoutine(ctx, 30*time.Second)

	var handler http.Handler = server
	if otelProviders != nil {
		handler = otelhttp.NewHandler(handler, "quarry-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics live on their own port so they stay reachable
	// even when the API is saturated.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, hc)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		scheduler.Stop()
		auditLogger.Close()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return connManager.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	return group.Wait()
}
