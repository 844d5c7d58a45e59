// Package server assembles the public HTTP surface.
//
// Routes:
//
//	POST /api/webhooks/clerk   signed provider webhooks
//	GET  /api/v1/users         cached user list (bearer token when auth is configured)
//	GET  /api/v1/users/{id}    cached user read
//
// Every request passes through tracing, request id, logging, panic recovery
// and a body size limit. Health and metrics are served separately by
// NewHealthMux.
package server
