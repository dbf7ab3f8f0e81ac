package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vigia-iot/vigia/pkg/api"
	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/cache"
	"github.com/vigia-iot/vigia/pkg/config"
	"github.com/vigia-iot/vigia/pkg/observability"
	"github.com/vigia-iot/vigia/pkg/service"
	"github.com/vigia-iot/vigia/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.ParseLevel("info"), os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
	logger.Info("starting vigia")

	// A resource missing from the resolution table would fail closed per
	// request; refuse to start instead.
	if err := authz.ValidateResolutionTable(); err != nil {
		logger.WithError(err).Error("invalid authorization tables")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := store.NewConnectionManager(store.ConnectionConfig{
		PrimaryURL:  cfg.Database.PrimaryURL,
		ReplicaURLs: store.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}

	if err := store.RunMigrations(ctx, db.Writer()); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}
	logger.Info("migrations applied")

	var cacheClient *cache.Client
	if cfg.Redis.URL != "" {
		cacheClient, err = cache.New(cache.Config{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// The cache is an optimization; a missing Redis degrades
			// rather than blocks startup.
			logger.WithError(err).Warn("cache unavailable, continuing without it")
			cacheClient = nil
		} else {
			logger.Info("cache connected")
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	stores := store.NewStores(db)
	svc := service.New(stores, cacheClient, service.Options{
		DashboardTTL: cfg.Redis.DashboardTTL,
		SessionTTL:   cfg.Auth.SessionTTL,
		Metrics:      metrics,
	})
	resolver := auth.NewPrincipalResolver(stores, cfg.Auth.PrincipalCacheSize, cfg.Auth.PrincipalCacheTTL)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize telemetry")
		os.Exit(1)
	}

	checker := observability.NewHealthChecker()
	checker.AddRequired("postgres", observability.PingerFunc(db.HealthCheck))
	if cacheClient != nil {
		checker.AddOptional("redis", cacheClient)
	}

	cleanup := cron.New()
	if _, err := cleanup.AddFunc(cfg.Auth.SessionCleanupSpec, func() {
		start := time.Now()
		n, err := stores.Sessions.DeleteExpired(context.Background(), time.Now().UTC())
		if metrics != nil {
			metrics.ObserveStoreOperation("delete_expired", "sessions", err, time.Since(start))
		}
		if err != nil {
			logger.WithError(err).Error("session cleanup failed")
			return
		}
		if n > 0 {
			logger.WithField("deleted", n).Info("expired sessions purged")
		}
		if metrics != nil {
			if active, err := stores.Sessions.CountActive(context.Background(), time.Now().UTC()); err == nil {
				metrics.SessionsActive.Set(float64(active))
			}
			dbStats := db.Writer().Stats()
			metrics.DBConnectionsActive.Set(float64(dbStats.InUse))
			metrics.DBConnectionsIdle.Set(float64(dbStats.Idle))
		}
	}); err != nil {
		logger.WithError(err).Error("invalid session cleanup schedule")
		os.Exit(1)
	}
	cleanup.Start()

	server := api.NewServer(svc, resolver, logger, metrics)
	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	if path := os.Getenv("VIGIA_CONFIG_FILE"); path != "" {
		go func() {
			err := config.Watch(watchCtx, path, func(next *config.Config) {
				// Only settings read per request take effect without a
				// restart; listener addresses and pool sizes need one.
				logger.SetLevel(observability.ParseLevel(next.Observability.LogLevel))
				svc.SetDashboardTTL(next.Redis.DashboardTTL)
				logger.WithFields(map[string]interface{}{
					"log_level":     next.Observability.LogLevel,
					"dashboard_ttl": next.Redis.DashboardTTL.String(),
				}).Info("configuration file reloaded")
			})
			if err != nil {
				logger.WithError(err).Warn("config watcher stopped")
			}
		}()
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error {
		return apiServer.Shutdown(ctx)
	})
	shutdown.Register(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.Register(func(ctx context.Context) error {
		cancelWatch()
		stopCtx := cleanup.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	shutdown.Register(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})
	shutdown.Register(func(ctx context.Context) error {
		if cacheClient != nil {
			return cacheClient.Close()
		}
		return nil
	})
	shutdown.Register(func(ctx context.Context) error {
		return db.Close()
	})

	if err := shutdown.Wait(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("vigia stopped")
}
