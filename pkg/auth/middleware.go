package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/usersync/pkg/httputil"
	"github.com/platinummonkey/usersync/pkg/observability"
	"github.com/sirupsen/logrus"
)

type contextKey struct{}

// WithClaims stores verified claims in ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the claims of the authenticated caller, or nil
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// Middleware rejects requests without a valid bearer token
type Middleware struct {
	verifier TokenVerifier
	logger   logrus.FieldLogger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(verifier TokenVerifier, logger logrus.FieldLogger) *Middleware {
	return &Middleware{
		verifier: verifier,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			observability.FromContext(r.Context(), m.logger).WithError(err).Warn("Token verification failed")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
