package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/usersync/pkg/auth"
	"github.com/platinummonkey/usersync/pkg/config"
	"github.com/platinummonkey/usersync/pkg/httputil"
	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/platinummonkey/usersync/pkg/users"
	"github.com/platinummonkey/usersync/pkg/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBodyBytes = 1 << 20

// Options configures the public router. Users, Auth and Metrics are optional.
type Options struct {
	Webhooks     *webhooks.Handler
	Users        *users.Handlers
	Auth         *auth.Middleware
	Metrics      *observability.Metrics
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

// NewRouter builds the public handler
func NewRouter(opts Options) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})

	if opts.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	opts.Webhooks.RegisterRoutes(router)

	if opts.Users != nil {
		api := router.NewRoute().Subrouter()
		if opts.Auth != nil {
			api.Use(opts.Auth.Handler)
		}
		opts.Users.RegisterRoutes(api)
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	handler := httputil.Chain(
		traceLogger(opts.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware(opts.Logger),
		httputil.MaxBytesMiddleware(maxBody),
	)(router)

	return otelhttp.NewHandler(handler, "usersync",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// traceLogger stores a logger carrying the active span's ids on the request
func traceLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.WithLogger(r.Context(), observability.WithTraceContext(r.Context(), logger))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewHealthMux serves health probes and, when registry is non-nil, /metrics
func NewHealthMux(checker *observability.HealthChecker, registry *prometheus.Registry) *http.ServeMux {
	serveMux := http.NewServeMux()
	observability.RegisterHealthRoutes(serveMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(serveMux, registry)
	}
	return serveMux
}

// NewHTTPServer applies the configured timeouts to handler
func NewHTTPServer(addr string, handler http.Handler, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
