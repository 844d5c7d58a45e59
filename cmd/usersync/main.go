package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/usersync/pkg/auth"
	"github.com/platinummonkey/usersync/pkg/cache"
	"github.com/platinummonkey/usersync/pkg/config"
	"github.com/platinummonkey/usersync/pkg/events"
	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/platinummonkey/usersync/pkg/server"
	"github.com/platinummonkey/usersync/pkg/storage"
	"github.com/platinummonkey/usersync/pkg/storage/postgres"
	"github.com/platinummonkey/usersync/pkg/storage/sqlite"
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/platinummonkey/usersync/pkg/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

// userStore is what both storage backends provide
type userStore interface {
	users.Store
	Migrate(ctx context.Context) error
	DB() *sql.DB
	Close() error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("usersync stopped")
	}
	logger.Info("usersync stopped")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		Deployment: observability.Deployment{
			StorageDriver: cfg.Storage.Driver,
			RedisCache:    cfg.Storage.RedisEnabled(),
			Events:        cfg.Events.Enabled(),
		},
	}, logger)
	if err != nil {
		return err
	}

	// Everything opened from here on registers its cleanup at once, so a
	// failed startup releases what was already opened.
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	abort := func(err error) error {
		if shutdownErr := shutdown.Shutdown(context.Background()); shutdownErr != nil {
			logger.WithError(shutdownErr).Warn("Cleanup after failed startup incomplete")
		}
		return err
	}

	verifier, err := webhooks.NewVerifier(cfg.Webhook.SigningSecret, cfg.Webhook.Tolerance)
	if err != nil {
		return abort(fmt.Errorf("%w: %v", config.ErrConfigMissing, err))
	}

	var authMiddleware *auth.Middleware
	if cfg.Auth.Enabled() {
		tokenVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCAudience)
		if err != nil {
			return abort(err)
		}
		authMiddleware = auth.NewMiddleware(tokenVerifier, logger)
	} else {
		logger.Warn("USERSYNC_OIDC_ISSUER not set, read API is unauthenticated")
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return abort(err)
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return store.Close()
	})
	if err := store.Migrate(ctx); err != nil {
		return abort(fmt.Errorf("failed to migrate store: %w", err))
	}

	userCache, l1, redisClient, err := openCache(cfg.Storage, metrics, logger)
	if err != nil {
		return abort(err)
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return userCache.Close()
	})

	opts := []users.ReconcilerOption{users.WithMetrics(metrics)}
	if cfg.Events.Enabled() {
		publisher, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return abort(err)
		}
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			if err := publisher.Flush(ctx); err != nil {
				logger.WithError(err).Warn("Failed to flush pending events")
			}
			return publisher.Close()
		})
		// peers reconcile too; their events drop our in-process entries
		if err := publisher.InvalidateOnEvents(l1); err != nil {
			return abort(err)
		}
		opts = append(opts, users.WithPublisher(publisher))
	}

	reconciler := users.NewReconciler(store, userCache, logger, opts...)
	routerOpts := server.Options{
		Webhooks:     webhooks.NewHandler(verifier, webhooks.NewDispatcher(reconciler, logger), metrics, logger),
		Users:        users.NewHandlers(users.NewCachedReader(store, userCache, logger), logger),
		Auth:         authMiddleware,
		Metrics:      metrics,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	}

	checker := observability.NewHealthChecker(store.DB(), redisClient, version)
	if pg, ok := store.(*postgres.UserStore); ok {
		checker.AddCheck("replicas", pg.HealthCheck)
	}

	scheduler := cron.New()
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if metrics != nil {
		job := users.NewCountJob(store, metrics.UsersTotal, logger)
		if _, err := job.Schedule(scheduler, cfg.Observability.UserCountSchedule); err != nil {
			return abort(fmt.Errorf("invalid user count schedule: %w", err))
		}
		job.Run()
	}

	apiServer := server.NewHTTPServer(
		net.JoinHostPort(cfg.Server.Host, cfg.Server.Port), server.NewRouter(routerOpts), cfg.Server)
	healthServer := server.NewHTTPServer(
		net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		server.NewHealthMux(checker, registry),
		cfg.Server)
	shutdown.AddServers(apiServer, healthServer)
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(apiServer, "api", logger) })
	g.Go(func() error { return serve(healthServer, "health", logger) })
	g.Go(func() error { return shutdown.WaitForShutdown(gctx) })

	logger.WithFields(logrus.Fields{
		"version": version,
		"driver":  cfg.Storage.Driver,
		"redis":   cfg.Storage.RedisEnabled(),
		"events":  cfg.Events.Enabled(),
	}).Info("usersync started")

	return g.Wait()
}

func serve(srv *http.Server, name string, logger logrus.FieldLogger) error {
	logger.WithFields(logrus.Fields{"server": name, "addr": srv.Addr}).Info("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server failed: %w", name, err)
	}
	return nil
}

// openStore is swapped in tests
var openStore = func(ctx context.Context, cfg storage.Config, logger logrus.FieldLogger) (userStore, error) {
	switch cfg.Driver {
	case storage.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath, logger)
	case storage.DriverPostgres:
		conns, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
			PrimaryURL:  cfg.PostgresURL,
			ReplicaURLs: cfg.ReplicaURLs(),
			MaxConns:    cfg.PostgresMaxConns,
			MinConns:    cfg.PostgresMinConns,
			Timeout:     cfg.PostgresTimeout,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		}, logger)
		if err != nil {
			return nil, err
		}
		conns.StartHealthCheckRoutine(ctx, 30*time.Second)
		return postgres.NewUserStore(conns, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openCache returns the read cache, which is the in-process cache fronting
// Redis when configured. The in-process cache is also returned on its own
// for event driven invalidation. The Redis client is returned for health
// checks and is nil otherwise.
func openCache(cfg storage.Config, metrics *observability.Metrics, logger logrus.FieldLogger) (cache.Cache, cache.Cache, *redis.Client, error) {
	l1 := cache.Instrument(cache.NewMemoryCache(cfg.L1CacheSize, cfg.L1CacheTTL), "l1", metrics)
	if !cfg.RedisEnabled() {
		return l1, l1, nil, nil
	}

	rc, err := cache.NewRedisCache(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("Redis cache enabled")

	l2 := cache.Instrument(rc, "l2", metrics)
	return cache.NewTiered(l1, l2), l1, rc.Client(), nil
}
