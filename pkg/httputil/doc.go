// Package httputil provides HTTP handler utilities for consistent error
// responses, request parsing, and middleware.
//
// Response helpers:
//
//	httputil.WriteSuccess(w, user)
//	httputil.WriteText(w, http.StatusOK, "Webhook received")
//	httputil.WriteBadRequest(w, "limit must be between 1 and 500")
//
// Request parsing:
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 50)
//	body, err := httputil.ReadBody(r) // ErrBodyTooLarge past the MaxBytesMiddleware limit
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
