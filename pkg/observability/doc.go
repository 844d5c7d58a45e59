// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for usersync.
//
// # Structured Logging
//
// Loggers are logrus loggers with a JSON formatter. Components accept a
// logrus.FieldLogger so tests can pass any logger.
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("user upserted")
//
// Request-scoped loggers carry the request id:
//
//	observability.FromContext(ctx, logger).Warn("cache invalidation failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordWebhookEvent("user.created", "processed")
//	metrics.RecordCacheInvalidation(err)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(serveMux, checker)
//
// A failing database makes readiness return 503. A failing Redis only
// degrades it.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "usersync",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
