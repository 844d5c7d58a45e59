// Package auth protects the read API with OIDC bearer tokens.
//
// The webhook route is authenticated by its signature and never passes
// through this middleware.
//
//	verifier, err := auth.NewOIDCVerifier(ctx, issuer, audience)
//	api.Use(auth.NewMiddleware(verifier, logger).Handler)
package auth
